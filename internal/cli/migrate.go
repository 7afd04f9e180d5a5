package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"medha-quiz/internal/config"
	pgmigrations "medha-quiz/internal/infra/postgres/migrations"
	"medha-quiz/internal/logging"
)

// NewMigrateCmd applies pending migrations; its rollback subcommand reverts the last group.
func NewMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), *configPath, migrateUp)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), *configPath, migrateDown)
		},
	})
	return cmd
}

type migrationStep func(ctx context.Context, migrator *migrate.Migrator, log *logrus.Entry) error

func withMigrator(ctx context.Context, configPath string, step migrationStep) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return runMigrationStep(ctx, cfg, logging.NewLogger("medha-quiz", cfg.Log.Level), step)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *logrus.Entry) error {
	return runMigrationStep(ctx, cfg, log, migrateUp)
}

func runMigrationStep(ctx context.Context, cfg config.Config, log *logrus.Entry, step migrationStep) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	return step(ctx, migrator, log)
}

func migrateUp(ctx context.Context, migrator *migrate.Migrator, log *logrus.Entry) error {
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("database is up to date")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations applied")
	return nil
}

func migrateDown(ctx context.Context, migrator *migrate.Migrator, log *logrus.Entry) error {
	group, err := migrator.Rollback(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("nothing to roll back")
		return nil
	}
	log.WithField("group", group.String()).Info("migrations rolled back")
	return nil
}
