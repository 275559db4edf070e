package main

import (
	"context"

	"github.com/spf13/cobra"

	"async-import/internal/app"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queue messages without serving HTTP",
	Long: `Consume start, batch and cleanup messages from the asynq queue and run the retry sweep.

Run as many workers as needed; each batch is applied at most once per attempt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireDurableQueue(cfg); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.RunWorker(ctx)
		})
	},
}
