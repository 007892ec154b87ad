package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newQualityCmd creates the 'quality' subcommand: the standalone post-load
// anomaly scan.
func newQualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality",
		Short: "Scans the catalog for anomalies and prints the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.store.ScanAnomalies(cmd.Context())
			if err != nil {
				return fmt.Errorf("scan anomalies: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
