package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
)

// MigrateOptions configures schema migration for the PostgreSQL-backed local
// store. SQLite deployments skip this and use Init instead.
type MigrateOptions struct {
	MigrationsDir string
	AutoMigrate   bool
}

// Migrate brings the PostgreSQL local store schema up to date from the
// migrations directory.
func (s *LocalStore) Migrate(opts MigrateOptions, log *logger.Logger) error {
	if !opts.AutoMigrate {
		if log != nil {
			log.Info("MIGRATE", "auto-migration disabled, skipping")
		}
		return nil
	}

	if _, err := os.Stat(opts.MigrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory %s does not exist", opts.MigrationsDir)
	}

	driver, err := postgres.WithInstance(s.Bun.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+opts.MigrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	if log != nil {
		log.Info("MIGRATE", "local store schema up to date")
	}
	return nil
}
