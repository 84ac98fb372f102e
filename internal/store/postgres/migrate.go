package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migration files follow bun's naming, <version>_<comment>.tx.up.sql, and separate statements
// with --bun:split.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	migrationsTable      = "garagebook_migrations"
	migrationsLocksTable = "garagebook_migration_locks"
)

func loadMigrations() (*migrate.Migrations, error) {
	migs := migrate.NewMigrations()
	if err := migs.Discover(migrationFiles); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return migs, nil
}

func newMigrator(db *bun.DB) (*migrate.Migrator, error) {
	migs, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	return migrate.NewMigrator(db, migs,
		migrate.WithTableName(migrationsTable),
		migrate.WithLocksTableName(migrationsLocksTable),
		migrate.WithMarkAppliedOnSuccess(true),
	), nil
}

// Migrate applies every embedded migration not yet recorded in the migrations table while
// holding the migrator lock. It returns the applied migrations as <version>_<comment>.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	m, err := newMigrator(db)
	if err != nil {
		return nil, err
	}
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations tables: %w", err)
	}
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = m.Unlock(context.WithoutCancel(ctx))
	}()

	group, err := m.Migrate(ctx)
	names := appliedNames(group)
	if err != nil {
		// The group ends with the migration that failed; it was not marked applied.
		if n := len(names); n > 0 {
			return names[:n-1], fmt.Errorf("migration %s: %w", names[n-1], err)
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return names, nil
}

func appliedNames(group *migrate.MigrationGroup) []string {
	if group == nil {
		return nil
	}
	names := make([]string, 0, len(group.Migrations))
	for _, mig := range group.Migrations {
		names = append(names, mig.String())
	}
	return names
}
