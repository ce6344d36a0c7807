package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrationsPath is where the Postgres schema lives relative to the repo root
const DefaultMigrationsPath = "migrations/postgres"

// Migrator applies the Postgres schema with golang-migrate
type Migrator struct {
	databaseURL    string
	migrationsPath string
}

// NewMigrator creates a migrator for the given database and migrations directory
func NewMigrator(databaseURL, migrationsPath string) *Migrator {
	if migrationsPath == "" {
		migrationsPath = DefaultMigrationsPath
	}
	return &Migrator{databaseURL: databaseURL, migrationsPath: migrationsPath}
}

func (m *Migrator) with(fn func(*migrate.Migrate) error) error {
	mg, err := migrate.New(fmt.Sprintf("file://%s", m.migrationsPath), m.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = mg.Close()
	}()
	return fn(mg)
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	return m.with(func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the given number of migrations
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return m.with(func(mg *migrate.Migrate) error {
		if err := mg.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	})
}

// Version returns the current migration version
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.with(func(mg *migrate.Migrate) error {
		var vErr error
		version, dirty, vErr = mg.Version()
		if vErr != nil && !errors.Is(vErr, migrate.ErrNilVersion) {
			return fmt.Errorf("failed to get migration version: %w", vErr)
		}
		return nil
	})
	return version, dirty, err
}
