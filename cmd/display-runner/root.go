// Package main provides the CLI entrypoint for display-runner.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Swind/go-display-runner/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose     bool
		configPath  string
		backend     string
		metricsAddr string
		logFile     string
	}
	logger  *slog.Logger
	logSink io.Closer
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "display-runner",
	Short: "Show frames from many goroutines in native windows",
	Long: `display-runner drives one display event loop on a dedicated OS thread
and lets any number of producers open windows and push frames to it.

Backends:
  x11       native windows on the X server in $DISPLAY
  terminal  true-colour half-block rendering in the current terminal
  headless  draws nothing; useful for load testing`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Flags win over the file
		if cmd.Flags().Changed("backend") {
			cfg.Backend = globalOpts.backend
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.Listen = globalOpts.metricsAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		return setupLogger()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logSink != nil {
			return logSink.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file, TOML or YAML (default: ~/.config/display-runner/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.backend, "backend", config.DefaultBackend,
		"Display backend: x11, terminal or headless")
	rootCmd.PersistentFlags().StringVar(&globalOpts.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9102)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.logFile, "log-file", "",
		"Write logs to this file instead of stderr")
}

// setupLogger configures the global slog logger.
func setupLogger() error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	switch {
	case globalOpts.logFile != "":
		f, err := os.OpenFile(globalOpts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = f
		logSink = f
	case cfg.Backend == "terminal":
		// stderr shares the screen with the terminal backend
		out = io.Discard
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
	return nil
}
