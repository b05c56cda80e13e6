package cmd

import (
	"github.com/spf13/cobra"

	"github.com/IamTheCarl/psu/driver"
)

type limitFlags struct {
	voltage float64
	current float64
}

func (l *limitFlags) register(cmd *cobra.Command, what string) {
	cmd.Flags().Float64VarP(&l.voltage, "voltage-limit", "V", 0, "set the voltage limit"+what)
	cmd.Flags().Float64VarP(&l.current, "current-limit", "I", 0, "set the current limit"+what)
}

// request includes only the limits given on the command line.
func (l *limitFlags) request(cmd *cobra.Command, action driver.Action) driver.Request {
	req := driver.Request{Action: action}
	if cmd.Flags().Changed("voltage-limit") {
		v := l.voltage
		req.Voltage = &v
	}
	if cmd.Flags().Changed("current-limit") {
		i := l.current
		req.Current = &i
	}
	return req
}

func (a *app) newOnCmd() *cobra.Command {
	var limits limitFlags
	cmd := &cobra.Command{
		Use:   "on",
		Short: "Power on the power supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, limits.request(cmd, driver.ActionOn))
		},
	}
	limits.register(cmd, " while you power it on")
	return cmd
}

func (a *app) newOffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "off",
		Short: "Power off the power supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, driver.Request{Action: driver.ActionOff})
		},
	}
}

func (a *app) newSetCmd() *cobra.Command {
	var limits limitFlags
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the limits of the power supply without changing the on/off state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, limits.request(cmd, driver.ActionSet))
		},
	}
	limits.register(cmd, "")
	return cmd
}

// run opens the supply, applies req and always closes the session.
func (a *app) run(cmd *cobra.Command, req driver.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	_, ps, err := a.openSupply(cmd.Context())
	if err != nil {
		return err
	}
	return driver.Execute(cmd.Context(), ps, req)
}
