package main

import (
	"context"

	"github.com/spf13/cobra"

	"async-import/internal/app"
)

var serveNoWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API together with the queue worker",
	Long: `Run the HTTP API, the queue worker, the retry sweep and progress publishing in one process.

With --no-worker only the API runs; start consumers separately with 'importctl worker'.
The local queue backend always consumes in-process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.RunServer(ctx, app.ServeOptions{Worker: !serveNoWorker})
		})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "do not consume queue messages in this process")
}
