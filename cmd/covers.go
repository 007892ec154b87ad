package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/comixlabs/catalog-etl/internal/covers"
)

// newCoversCmd creates the 'covers' subcommand: downloads recorded cover
// image URLs into the archive store.
func newCoversCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "covers",
		Short: "Downloads issue cover images into the archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			fetcher := covers.New(a.store, a.archiver, covers.Config{
				UserAgent: "catalog-etl",
				Timeout:   15 * time.Second,
			}, a.logger.Named("covers"))

			report, err := fetcher.FetchAll(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("fetch covers: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "covers: requested=%d downloaded=%d failed=%d\n",
				report.Requested, report.Downloaded, report.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum covers to download")
	return cmd
}
