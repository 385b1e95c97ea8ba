package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/logging"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "face-gate",
	Short: "Face enrollment and verification service",
	Long: `Face Gate stores face embeddings per subject and verifies new captures
against them by cosine similarity, optionally restricted to authorized
locations. It runs as an HTTP service or as one-off CLI commands.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig loads and validates the configuration from the environment.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes structured logs to stderr so stdout stays parseable.
func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}
