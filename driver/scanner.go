package driver

import (
	"runtime"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ListPorts enumerates serial ports. Unless all is set, ports that can not
// be a supply (bluetooth, onboard consoles on macOS) are dropped.
func ListPorts(all bool) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	ports := make([]PortInfo, 0, len(details))
	seen := make(map[string]bool)
	for _, d := range details {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true

		if !all && !candidatePort(d.Name, runtime.GOOS) {
			continue
		}
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// candidatePort filters port names by OS conventions.
func candidatePort(name, goos string) bool {
	if goos == "windows" {
		return strings.HasPrefix(strings.ToUpper(name), "COM")
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, "bluetooth") {
		return false
	}

	return strings.Contains(lower, "ttyusb") ||
		strings.Contains(lower, "ttyacm") ||
		strings.Contains(lower, "usbserial") ||
		strings.Contains(lower, "usbmodem") ||
		strings.Contains(lower, "ttys")
}
