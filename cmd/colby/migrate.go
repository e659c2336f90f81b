package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/jmbish04/gh-bot/internal/adapter/driven/sqlite"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := sqliteadapter.NewDB(cmd.Context(), cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
			}
			defer closeDB(db)

			version, err := db.Migrate()
			if err != nil {
				return err
			}
			slog.Info("migrations complete", "path", cfg.DBPath, "schema_version", version)
			return nil
		},
	}
}
