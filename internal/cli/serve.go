package cli

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidalign/internal/api"
	"github.com/forPelevin/vidalign/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over a read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) == "" {
				bind = cfg.API.Bind
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withStore(sigCtx, func(st *store.Store) error {
				srv := api.NewServer(api.ServerConfig{
					Bind:      bind,
					Runs:      st,
					Logger:    logger,
					StartTime: time.Now(),
					Version:   version,
				})

				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()

				select {
				case err := <-errCh:
					return err
				case <-sigCtx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return <-errCh
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
