package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rowshare-backend/internal/shared/config"
	"rowshare-backend/internal/shared/storage/db"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appConfig(c.v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch cfg.Store {
			case config.StoreSQLite:
				conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer conn.Close()
				if err := db.RunMigrations(ctx, conn, db.DialectSQLite); err != nil {
					return err
				}
			case config.StorePostgres:
				conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
				if err != nil {
					return err
				}
				defer conn.Close()
				if err := db.RunMigrations(ctx, conn, db.DialectPostgres); err != nil {
					return err
				}
			default:
				return fmt.Errorf("store %q has no migrations", cfg.Store)
			}
			return c.print(cmd.OutOrStdout(), map[string]string{"store": cfg.Store, "status": "migrated"}, "migrations applied ("+cfg.Store+")")
		},
	}
}
