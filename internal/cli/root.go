package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vietddude/apiguard/internal/app"
	"github.com/vietddude/apiguard/internal/core/config"
	"github.com/vietddude/apiguard/internal/core/logging"
)

var (
	cfgPath   string
	isDebug   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "apiguard",
	Short: "Resilient API client with session teardown",
	Long: `apiguard issues HTTP calls with bounded retries, normalizes every failure into
a safe error and clears all session state when a failure means the session is gone.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: auto, json, text (overrides config)")
}

// loadConfig reads the config file. A missing default config file falls back
// to built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		logging.Setup(logging.Options{Debug: isDebug})
		slog.Error("Failed to load config", "error", err)
		return nil, err
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	// Diagnostics go to stderr so command output stays parseable.
	log := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Debug:  isDebug,
		Output: os.Stderr,
	})

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize apiguard", "error", err)
		return nil, nil, err
	}
	return a, log, nil
}
