package cmd

import (
	"context"
	"time"

	"ctb/bootstrap"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

const checkTimeout = 30 * time.Second

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the database and cache are reachable",
		Long: `Initialize the configured SQLite database (and Redis, when enabled),
report the result and close the connections. Useful as a pre-flight check
before "ctb serve".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, sugar, err := opts.load("error")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			db := bootstrap.NewDatabase(cfg, sugar)

			var s *spinner.Spinner
			if !opts.quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Connecting to storage..."
				s.Start()
			}
			err = db.Initialize(ctx)
			if err == nil {
				err = db.Ping(ctx)
			}
			if s != nil {
				s.Stop()
			}
			defer db.Close()

			if err != nil {
				printFailure(out, "Storage check failed: %v", err)
				return err
			}

			printSuccess(out, "SQLite ready at %s", cfg.Database.SQLitePath)
			if db.Redis != nil {
				printSuccess(out, "Redis reachable at %s", cfg.Redis.Addr)
			} else if !opts.quiet {
				warningColor.Fprintln(out, "Redis cache disabled")
			}
			return nil
		},
	}
}
