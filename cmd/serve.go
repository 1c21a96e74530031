package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ctb/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Initialize the database and validator, mount the API routes and serve
until SIGINT or SIGTERM is received.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, sugar, err := opts.load("")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			sugar.Infow("ctb starting...", "pid", os.Getpid())

			deps, err := bootstrap.DefaultDependencies(cfg, bootstrap.Services{}, sugar)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			srv, err := bootstrap.NewServer(ctx, cfg, deps)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer func() {
				if err := srv.Close(); err != nil {
					sugar.Errorw("Shutdown finished with errors", "error", err)
				}
			}()

			return srv.ListenAndServe(ctx)
		},
	}
}
