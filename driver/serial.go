package driver

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

const tcpScheme = "tcp://"

// ============================================================================
// Serial Port (Physical RS232 / USB CDC)
// ============================================================================

// SerialPort wraps go.bug.st/serial.
type SerialPort struct {
	serial.Port
	portName string
}

var _ Port = (*SerialPort)(nil)

func openSerialPort(portName string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	return &SerialPort{Port: port, portName: portName}, nil
}

// Write returns once the bytes have left the UART, so the pacing interval
// that follows is measured from the end of transmission.
func (p *SerialPort) Write(b []byte) (int, error) {
	n, err := p.Port.Write(b)
	if err != nil {
		return n, err
	}
	if err := p.Port.Drain(); err != nil {
		return n, fmt.Errorf("drain: %w", err)
	}
	return n, nil
}

func (p *SerialPort) Name() string {
	return p.portName
}

// ============================================================================
// Unified Open Function
// ============================================================================

// OpenPort opens either a serial device or, for names of the form
// "tcp://host:port", a TCP connection to a serial bridge or the simulator.
// Serial names are "COM3", "/dev/ttyUSB0", etc.
func OpenPort(portName string, baudRate int) (Port, error) {
	if strings.HasPrefix(portName, tcpScheme) {
		port, err := OpenTCP(strings.TrimPrefix(portName, tcpScheme))
		if err != nil {
			return nil, err
		}
		return port, nil
	}
	return openSerialPort(portName, baudRate)
}
