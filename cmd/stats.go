package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the 'stats' subcommand: top series by issue count.
func newStatsCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Prints the series with the most issues",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := a.store.TopSeries(cmd.Context(), top)
			if err != nil {
				return fmt.Errorf("top series: %w", err)
			}
			for i, sc := range counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s (%d issues)\n", i+1, sc.Title, sc.IssueCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of series to list")
	return cmd
}
