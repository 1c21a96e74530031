package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ctb/api"
	"ctb/bootstrap"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Supported routes output formats.
const (
	formatYAML  = "yaml"
	formatJSON  = "json"
	formatTable = "table"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	var (
		output     string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the mounted route tree",
		Long: `Build the server against an in-memory database and print every mounted
route with its effective path and methods. Nothing is served.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				output = formatJSON
			}
			switch output {
			case formatYAML, formatJSON, formatTable:
			default:
				return fmt.Errorf("unsupported output format %q (want yaml, json or table)", output)
			}

			cfg, logger, sugar, err := opts.load("error")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// the route tree does not depend on stored data
			cfg.Database.SQLitePath = ":memory:"
			cfg.Redis.Enabled = false

			deps, err := bootstrap.DefaultDependencies(cfg, bootstrap.Services{}, sugar)
			if err != nil {
				return err
			}
			srv, err := bootstrap.NewServer(context.Background(), cfg, deps)
			if err != nil {
				return err
			}
			defer srv.Close()

			return writeRoutes(cmd.OutOrStdout(), srv.Routes(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "Output format: yaml, json or table")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format (same as --output json)")
	return cmd
}

func writeRoutes(w io.Writer, routes []api.RouteInfo, format string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(routes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal routes: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatTable:
		renderRoutesTable(w, routes)
		return nil
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(routes); err != nil {
			return fmt.Errorf("failed to encode routes: %w", err)
		}
		return enc.Close()
	}
}
