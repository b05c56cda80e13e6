package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/IamTheCarl/psu/logger"
	"github.com/IamTheCarl/psu/shell"
)

func (a *app) newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Keep a session open and adjust the supply interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			name, ps, err := a.openSupply(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := ps.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			sh, err := shell.New(ps, name)
			if err != nil {
				return err
			}
			logger.SetOutput(sh.Stdout())
			defer logger.SetOutput(os.Stderr)

			return sh.Run(cmd.Context())
		},
	}
}
