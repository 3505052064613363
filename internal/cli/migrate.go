package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/sqlite"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx := cmd.Context()
			switch cfg.Database.Driver {
			case driverSQLite:
				db, err := sqlite.Open(ctx, cfg.Database.Path)
				if err != nil {
					return fmt.Errorf("open sqlite: %w", err)
				}
				defer db.Close()
				version, err := db.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				log.Info("sqlite schema ready", zap.String("path", cfg.Database.Path), zap.Int("version", version))
				fmt.Fprintf(cmd.OutOrStdout(), "sqlite schema at version %d\n", version)
			default:
				db, err := postgres.Connect(ctx, postgresConfig(cfg))
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				defer db.Close()
				if err := db.InitSchema(ctx, cfg.Embedding.Dimensions); err != nil {
					return err
				}
				log.Info("postgres schema ready", zap.Int("vector_index_dimensions", cfg.Embedding.Dimensions))
				fmt.Fprintln(cmd.OutOrStdout(), "postgres schema ready")
			}
			return nil
		},
	}
}
