package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"async-import/internal/app"
	"async-import/internal/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of tasks per status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			counts, err := a.Imports.Statistics(ctx)
			if err != nil {
				return err
			}
			return printStats(cmd, counts)
		})
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON instead of a table")
}

func printStats(cmd *cobra.Command, counts map[domain.TaskStatus]int) error {
	out := cmd.OutOrStdout()
	if statsJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tTASKS")
	total := 0
	for _, status := range domain.ValidStatuses {
		fmt.Fprintf(w, "%s\t%d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}
