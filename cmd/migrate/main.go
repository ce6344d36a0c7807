// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/config"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version, seed")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
		steps  = flag.Int("steps", 1, "Migrations to roll back with -action down")
		path   = flag.String("path", "", "Migrations directory (default migrations/<db>)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)

	ctx := context.Background()
	switch *dbType {
	case "postgres":
		err = runPostgres(ctx, cfg, *action, *path, *steps)
	case "clickhouse":
		err = runClickHouse(ctx, cfg, *action, *path)
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		logging.Fatalf("%s migration failed: %v", *dbType, err)
	}
}

func runPostgres(ctx context.Context, cfg *config.Config, action, path string, steps int) error {
	if !cfg.Database.Postgres.Configured() {
		return fmt.Errorf("set DATABASE_URL or POSTGRES_HOST")
	}
	migrator := storage.NewMigrator(cfg.Database.Postgres.ConnString(), path)

	switch action {
	case "up":
		logging.Info("Running Postgres migrations...")
		if err := migrator.Up(); err != nil {
			return err
		}
		logging.Info("Postgres migrations completed successfully")

	case "down":
		logging.Infof("Rolling back %d Postgres migration(s)...", steps)
		if err := migrator.Down(steps); err != nil {
			return err
		}
		logging.Info("Postgres migration rolled back successfully")

	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		logging.Infof("Current Postgres migration version: %d (dirty: %v)", version, dirty)

	case "seed":
		return seedDemoEvents(ctx, cfg)

	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	return nil
}

// seedDemoEvents inserts the demo events, skipping ids that already exist
func seedDemoEvents(ctx context.Context, cfg *config.Config) error {
	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewEventRepository(db)
	for _, e := range storage.DemoEvents(time.Now()) {
		if err := repo.ImportEvent(ctx, e); err != nil {
			return fmt.Errorf("failed to seed %s: %w", e.ID, err)
		}
		logging.WithField("event", e.ID).Info("Seeded demo event")
	}
	return nil
}

func runClickHouse(ctx context.Context, cfg *config.Config, action, path string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}
	if !cfg.Database.ClickHouse.Configured() {
		return fmt.Errorf("set CLICKHOUSE_HOST")
	}
	if path == "" {
		path = storage.DefaultClickHouseMigrationsPath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory not found: %s", path)
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	logging.Info("Running ClickHouse migrations...")
	if err := storage.RunClickHouseMigrations(ctx, db, path); err != nil {
		return err
	}
	logging.Info("ClickHouse migrations completed successfully")
	return nil
}
