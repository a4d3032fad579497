package database

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed seeds/seed.sql
var defaultSeed string

// MigrationsTable records applied schema versions.
const MigrationsTable = "migrations"

const migrationsDir = "migrations"

func setupGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(MigrationsTable)
	return goose.SetDialect("mysql")
}

// MigrateUp applies every pending embedded migration in version order.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return errors.Wrap(goose.UpContext(ctx, db, migrationsDir), "migrate up")
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return errors.Wrap(goose.DownContext(ctx, db, migrationsDir), "migrate down")
}

// MigrateStatus prints applied and pending migrations through goose's logger.
func MigrateStatus(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return errors.Wrap(goose.StatusContext(ctx, db, migrationsDir), "migrate status")
}

// CreateMigration writes a new timestamped SQL migration into dir on disk.
func CreateMigration(dir, name string) error {
	goose.SetBaseFS(nil)
	return errors.Wrap(goose.Create(nil, dir, name, "sql"), "create migration")
}

// DefaultSeed is the embedded demo data script.
func DefaultSeed() string { return defaultSeed }
