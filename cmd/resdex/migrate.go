package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	historyrepo "github.com/kailas-cloud/resdex/internal/repository/history"
	sourcerepo "github.com/kailas-cloud/resdex/internal/repository/source"
	"github.com/kailas-cloud/resdex/internal/sqldb"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the source tables and the match history table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			gdb, err := openSources(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = sqldb.Close(gdb) }()

			if err := sourcerepo.Migrate(gdb); err != nil {
				return fmt.Errorf("migrate sources: %w", err)
			}
			if err := historyrepo.New(gdb).Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate history: %w", err)
			}
			logger.Info("Migrations applied", zap.String("driver", cfg.Sources.Driver))
			return nil
		},
	}
}
