package main

// Run database migrations:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate status
//   go run ./cmd/migrate down

import (
	"context"
	"database/sql"
	"os"

	"github.com/spf13/cobra"

	"quality-backend/internal/shared/config"
	"quality-backend/internal/shared/storage/db"
	"quality-backend/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var databaseURL string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the quality-backend database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to DATABASE_URL)")

	withDB := func(fn func(ctx context.Context, sqlDB *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			url := databaseURL
			if url == "" {
				url = config.Load().DatabaseURL
			}
			ctx := cmd.Context()
			sqlDB, err := db.Connect(ctx, url, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return fn(ctx, sqlDB)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB) error {
				if err := db.RunMigrations(ctx, sqlDB); err != nil {
					return err
				}
				telemetry.Info("migrate.up.done", nil)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB) error {
				version, err := db.MigrationStatus(ctx, sqlDB)
				if err != nil {
					return err
				}
				telemetry.Info("migrate.status", map[string]any{"version": version})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB) error {
				if err := db.RollbackMigration(ctx, sqlDB); err != nil {
					return err
				}
				telemetry.Info("migrate.down.done", nil)
				return nil
			}),
		},
	)
	return root
}
