package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"async-import/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send start messages for failed tasks whose retry is due",
	Long: `Find failed tasks whose backoff has elapsed and send them a retry start message.
Workers run this sweep periodically; use the command after an outage of the queue.`,
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
			sent, err := a.Retry.SweepDue(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d retry message(s)\n", sent)
			return nil
		})
	},
}
