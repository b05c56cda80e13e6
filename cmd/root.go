package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IamTheCarl/psu/config"
	"github.com/IamTheCarl/psu/driver"
	"github.com/IamTheCarl/psu/logger"
)

// app holds the global flags shared by every subcommand.
type app struct {
	configPath string
	supply     string
	logLevel   string
	logDir     string

	// driverOptions are passed to driver.Open; tests swap in a MockPort.
	driverOptions []driver.Option
}

// NewRootCmd builds the psu command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd()
}

func newRootCmd(opts ...driver.Option) *cobra.Command {
	a := &app{driverOptions: opts}

	root := &cobra.Command{
		Use:   "psu",
		Short: "Control your bench power supply",
		Long: `Switch a bench power supply on and off and set its limits over a serial link.

Supplies are configured in ~/.config/bench_psu_config.yaml:

  default_supply: bk_precision
  power_supplies:
    bk_precision: !bk_precision_196x
      serial_interface: /dev/serial/by-id/usb-1453_4026-if00-port0
      address: 0

Examples:
  psu on -V 5 -I 0.5          # Set limits and switch the output on
  psu off                     # Switch the output off
  psu set -V 12               # Change a limit, leave the output alone
  PSU_NAME=second psu off     # Use another configured supply`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default $PSU_CONFIG or ~/.config/"+config.FileName+")")
	flags.StringVarP(&a.supply, "supply", "s", "", "power supply to use (default $PSU_NAME or default_supply)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (trace shows every command sent)")
	flags.StringVar(&a.logDir, "log-dir", "", "also write JSON logs to this directory")

	root.AddCommand(
		a.newOnCmd(),
		a.newOffCmd(),
		a.newSetCmd(),
		newPortsCmd(),
		a.newServeCmd(),
		a.newShellCmd(),
		newSimulateCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, NewRootCmd()); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute runs root and logs its error. File logging is stopped on every
// path, after the error has been written.
func execute(ctx context.Context, root *cobra.Command) error {
	defer logger.Close()

	err := root.ExecuteContext(ctx)
	if err != nil {
		logger.L().Errorf("Unrecoverable error: %v", err)
	}
	return err
}

func (a *app) setupLogging() error {
	if err := logger.SetLevel(a.logLevel); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	if a.logDir != "" {
		if err := logger.Init(a.logDir); err != nil {
			return err
		}
	}
	return nil
}

// loadSupply reads the config file and picks the supply to use.
func (a *app) loadSupply() (string, driver.SupplyConfig, error) {
	path, err := config.ResolvePath(a.configPath)
	if err != nil {
		return "", nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, err
	}

	return cfg.Supply(a.supply)
}

// openSupply loads the config and starts a session with the chosen supply.
func (a *app) openSupply(ctx context.Context) (string, driver.PowerSupply, error) {
	name, sc, err := a.loadSupply()
	if err != nil {
		return "", nil, err
	}

	ps, err := driver.Open(ctx, sc, a.driverOptions...)
	if err != nil {
		return name, nil, fmt.Errorf("failed to prepare power supply %q: %w", name, err)
	}
	return name, ps, nil
}
