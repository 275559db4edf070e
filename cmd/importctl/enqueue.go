package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"async-import/internal/app"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <task-id>",
	Short: "Send a start message for a pending task",
	Long: `Send a start message for a pending task, e.g. when the message sent at submission
was lost. Failed tasks are re-run through the API's retry endpoint instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireDurableQueue(cfg); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Imports.Enqueue(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued task %s\n", args[0])
			return nil
		})
	},
}
