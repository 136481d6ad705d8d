package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/resdex/internal/transport/chi"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

var errNoTables = errors.New("incremental sync needs at least one --table")

func newSyncCmd() *cobra.Command {
	var (
		mode   string
		tables []string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the registry with the source tables once",
		Example: `  resdex sync
  resdex sync --mode incremental --table api_definitions --table tool_definitions`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := synchronizer.ParseMode(mode)
			if err != nil {
				return err
			}
			if m == synchronizer.ModeIncremental && len(tables) == 0 {
				return errNoTables
			}

			cfg, env, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, env, logger)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.sync.Sync(cmd.Context(), m, tables)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if err := printJSON(cmd.OutOrStdout(), chiTransport.ReportToResponse(&report)); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return errors.New("sync finished with failed items")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "full", "sync mode: full or incremental")
	cmd.Flags().StringSliceVar(&tables, "table", nil, "source table to reconcile (repeatable)")
	return cmd
}
