package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IamTheCarl/psu/driver"
)

func newPortsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long: `Scan the host for serial ports and print them with their USB identifiers.
Use this to find the serial_interface value for your config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := driver.ListPorts(all)
			if err != nil {
				return fmt.Errorf("list serial ports: %w", err)
			}
			printPorts(cmd, ports)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include ports that are unlikely to be a power supply")
	return cmd
}

func printPorts(cmd *cobra.Command, ports []driver.PortInfo) {
	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found.")
		return
	}

	fmt.Fprintln(out, "Detected serial ports:")
	for _, p := range ports {
		if !p.IsUSB {
			fmt.Fprintf(out, "  - %s\n", p.Name)
			continue
		}
		fmt.Fprintf(out, "  - %s [USB %s:%s]", p.Name, p.VID, p.PID)
		if p.Product != "" {
			fmt.Fprintf(out, " %s", p.Product)
		}
		if p.SerialNumber != "" {
			fmt.Fprintf(out, " (serial %s)", p.SerialNumber)
		}
		fmt.Fprintln(out)
	}
}
