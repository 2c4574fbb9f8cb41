// Package main provides the entry point for the course content pipeline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/config"
	"github.com/jonathan/course-content-pipeline/internal/observability"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	logFile    string
	verbose    bool

	appConfig *config.Config
	logger    = zap.NewNop()
	closeLog  = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "content_agent",
	Short: "Course content generation and publishing pipeline",
	Long: `Generates structured course content for a list of keys with a generative model,
validates every response against its expected shape, stores the results and
publishes them to a content endpoint, recording failed uploads in a ledger.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) { closeLog() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to content_agent.yaml (defaults to ./content_agent.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Console log format: console or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "JSON run log file, appended to (empty string disables)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

// setup loads configuration once and builds the process logger.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	l, closeFn, err := observability.NewLogger(observability.LogOptions{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appConfig = cfg
	logger = l
	closeLog = closeFn
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
