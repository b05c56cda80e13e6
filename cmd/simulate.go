package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/IamTheCarl/psu/protocol"
	"github.com/IamTheCarl/psu/simulator"
)

func newSimulateCmd() *cobra.Command {
	var (
		listen  string
		address uint8
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Pretend to be a BK Precision 196X on a TCP port",
		Long: `Listen for a driver the way a serial-to-TCP bridge would and apply its
commands to a simulated front panel. Point a supply entry at it:

  power_supplies:
    sim: !bk_precision_196x
      serial_interface: tcp://localhost:9999

Use --log-level trace to see every line received.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := simulator.New(address)
			if err != nil {
				return err
			}

			l, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to start simulator: %w", err)
			}
			return srv.Serve(cmd.Context(), l)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":9999", "address to listen on")
	cmd.Flags().Uint8VarP(&address, "address", "a", 0, fmt.Sprintf("bus address of the simulated supply (0-%d)", protocol.MaxAddress))
	return cmd
}
