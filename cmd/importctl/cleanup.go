package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"async-import/internal/app"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete tasks older than the retention window",
	Long: `Delete tasks created before the retention window together with their uploaded
files and error logs. Tasks that are being processed are kept.

Examples:
  importctl cleanup
  importctl cleanup --days 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			days := cleanupDays
			if days == 0 {
				days = a.Config().CleanupDaysToKeep
			}
			removed, err := a.Cleaner.CleanupOldTasks(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d task(s) older than %d day(s)\n", removed, days)
			return nil
		})
	},
}

func init() {
	cleanupCmd.Flags().IntVarP(&cleanupDays, "days", "d", 0, "days to keep (defaults to CLEANUP_DAYS_TO_KEEP)")
}
