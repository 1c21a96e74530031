// Package cmd provides the command-line interface of the ctb server.
package cmd

import (
	"fmt"

	"ctb/bootstrap"
	"ctb/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool
	quiet      bool
}

// NewRootCmd creates the ctb command. Without a subcommand it serves HTTP.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	serveCmd := newServeCmd(opts)
	rootCmd := &cobra.Command{
		Use:   "ctb",
		Short: "Stock-market web API server",
		Long: `ctb serves the authentication and stock-market HTTP API.

Running ctb without a subcommand is the same as "ctb serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		RunE: serveCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file path (default: config.yaml in . or ./config)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format override (console or json)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Suppress non-essential output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newRoutesCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))

	return rootCmd
}

// load reads the configuration and builds the logger. Flag overrides win
// over the config file; defaultLevel applies when neither sets a level.
func (o *rootOptions) load(defaultLevel string) (*config.Config, *zap.Logger, *zap.SugaredLogger, error) {
	level := o.logLevel
	if level == "" {
		level = defaultLevel
	}
	bootLogger, bootSugar, err := bootstrap.InitLogger(level, o.logFormat)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := bootstrap.InitConfig(o.configFile, bootSugar)
	if err != nil {
		_ = bootLogger.Sync()
		return nil, nil, nil, err
	}

	if o.logLevel != "" && o.logFormat != "" {
		return cfg, bootLogger, bootSugar, nil
	}
	if o.logLevel == "" && defaultLevel == "" {
		level = cfg.Log.Level
	}
	format := o.logFormat
	if format == "" {
		format = cfg.Log.Format
	}
	logger, sugar, err := bootstrap.InitLogger(level, format)
	if err != nil {
		_ = bootLogger.Sync()
		return nil, nil, nil, fmt.Errorf("invalid log settings: %w", err)
	}
	_ = bootLogger.Sync()
	return cfg, logger, sugar, nil
}
