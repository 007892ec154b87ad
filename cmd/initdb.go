package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newInitDBCmd creates the 'initdb' subcommand. The DDL is idempotent, so
// rerunning against an existing catalog is safe.
func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Creates the catalog schema if absent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.store.InitSchema(cmd.Context()); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
			a.logger.Info("schema ready")
			return nil
		},
	}
}
