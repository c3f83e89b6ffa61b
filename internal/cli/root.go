package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/ossched/internal/config"
	"github.com/me/ossched/internal/logging"
)

var (
	flagConfig    string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
	client    *Client
)

// defaultServer returns the default server URL, checking OSSCHED_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("OSSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the ossched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ossched",
		Short: "ossched: multi-level queue CPU scheduler",
		Long: "ossched runs a multi-level queue CPU scheduler against simulated workloads,\n" +
			"serves it over HTTP, and inspects recorded dispatch traces.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Default()
			if flagConfig != "" {
				loaded, err := config.Load(flagConfig)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}

			var err error
			logger, logCloser, err = logging.Open(logging.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				File:   cfg.LogFile,
			})
			if err != nil {
				return err
			}
			client = NewClient(flagServer, logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "ossched server URL (or OSSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSimulateCmd(),
		newWorkloadCmd(),
		newServeCmd(),
		newTraceCmd(),
		newAdmitCmd(),
		newNextCmd(),
		newStatusCmd(),
	)

	return root
}

// requireDB returns the trace database path from --db or the config.
func requireDB(flagDB string) (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return "", fmt.Errorf("no trace database: pass --db or set db_path in the config")
}
