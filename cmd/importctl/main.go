package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"async-import/internal/app"
	"async-import/internal/config"
)

var version = "1.0.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Operate the async import pipeline",
	Long: `importctl runs and operates the async batch import pipeline.

Configuration is read from the environment (DB_HOST, REDIS_ADDR, QUEUE_BACKEND, ...)
and, with --config, from a YAML file. Environment values win.

Examples:
  importctl serve
  importctl worker
  importctl cleanup --days 14
  importctl sweep
  importctl stats
  importctl enqueue 0192f3c4-7a51-7b2e-9d1a-3c6f0e8b9a10`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (overrides CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(enqueueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_PATH", configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		if err := os.Setenv("LOG_LEVEL", logLevel); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// withApp builds the pipeline, runs fn until it returns or a signal arrives,
// then releases the pipeline.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// requireDurableQueue rejects one-shot commands that enqueue messages on the
// in-process queue, which dies with the command.
func requireDurableQueue(cfg *config.Config) error {
	if cfg.QueueBackend != config.QueueBackendAsynq {
		return fmt.Errorf("this command needs QUEUE_BACKEND=%s, got %q", config.QueueBackendAsynq, cfg.QueueBackend)
	}
	return nil
}
