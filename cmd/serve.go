package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shelfarr/booksearch/internal/api"
	"github.com/shelfarr/booksearch/internal/logging"
)

func newServeCmd(version string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live search web server",
		Long: `Starts the web interface, its websocket live search, the JSON search API,
the health endpoint and prometheus metrics.`,
		Example: `  # Start server on the configured address (default :8080)
  booksearch serve

  # Start server on a custom address
  booksearch serve --listen :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}

			server := api.NewServer(cfg, newClient(cfg), version)
			return runServer(cmd.Context(), server, cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "address to listen on, overrides server.listen_addr")

	return cmd
}

type lifecycle interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// runServer serves until ctx is canceled or the listener fails, then shuts
// down within timeout.
func runServer(ctx context.Context, srv lifecycle, timeout time.Duration) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logging.L().Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.L().Error().Err(err).Msg("server shutdown failed")
			return err
		}
		logging.L().Info().Msg("server stopped")
		return nil
	})

	return g.Wait()
}
