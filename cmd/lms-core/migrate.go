package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfwhale/lms-core/internal/infrastructure/db/mongo"
	"github.com/wolfwhale/lms-core/internal/infrastructure/db/postgres"
	"github.com/wolfwhale/lms-core/internal/pkg/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema (Postgres) or indexes (MongoDB)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}

			switch cfg.StoreDriver {
			case config.DriverPostgres:
				db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
				if err != nil {
					return err
				}
				if sqlDB, err := db.DB(); err == nil {
					defer sqlDB.Close()
				}
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
			case config.DriverMongo:
				client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
				if err != nil {
					return err
				}
				defer func() { _ = client.Disconnect(ctx) }()
				if err := mongo.EnsureIndexes(ctx, db); err != nil {
					return err
				}
			case config.DriverMemory:
				return errors.New("migrate: the memory store has no schema")
			default:
				return fmt.Errorf("migrate: unknown store driver %q", cfg.StoreDriver)
			}

			log.Info().Str("store", cfg.StoreDriver).Msg("migration complete")
			return nil
		},
	}
}
