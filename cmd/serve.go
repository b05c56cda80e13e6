package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/IamTheCarl/psu/api"
	"github.com/IamTheCarl/psu/driver"
	"github.com/IamTheCarl/psu/logger"
)

func (a *app) newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Control the power supply over a WebSocket",
		Long: `Serve a WebSocket at /ws that accepts requests such as
  {"command": "on", "voltage": 5.0, "current": 0.5}
and Prometheus metrics at /metrics. Each request opens and closes its own
session; concurrent requests are refused while one is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, sc, err := a.loadSupply()
			if err != nil {
				return err
			}

			handler := api.NewHandler(func(ctx context.Context) (driver.PowerSupply, error) {
				return driver.Open(ctx, sc, a.driverOptions...)
			})
			return serve(cmd.Context(), listen, name, handler.Routes())
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":8989", "address to listen on")
	return cmd
}

// serve runs until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, addr, supply string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().WithField("supply", supply).Infof("Server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
