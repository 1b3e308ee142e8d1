package repository

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// MigrationURL turns a store DSN into the URL golang-migrate expects for the driver.
func MigrationURL(cfg Config) (string, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return "sqlite://" + sqlitePath(cfg.DSN), nil
	case DriverPostgres:
		for _, scheme := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(cfg.DSN, scheme) {
				return "pgx5://" + strings.TrimPrefix(cfg.DSN, scheme), nil
			}
		}
		return "", fmt.Errorf("postgres DSN must be a URL, got %q", cfg.DSN)
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func newMigrator(cfg Config) (*migrate.Migrate, error) {
	dir := "migrations/" + DriverSQLite
	if cfg.Driver == DriverPostgres {
		dir = "migrations/" + DriverPostgres
	}
	source, err := iofs.New(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	url, err := MigrationURL(cfg)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration.
func Migrate(cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("repository.migrate.failed", "driver", cfg.Driver, "error", err)
		return fmt.Errorf("run up migrations: %w", err)
	}
	v, dirty, _ := m.Version()
	logger.Info("repository.migrate.ok", "driver", cfg.Driver, "version", v, "dirty", dirty)
	return nil
}

// MigrationVersion reports the applied schema version.
func MigrationVersion(cfg Config) (uint, bool, error) {
	m, err := newMigrator(cfg)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
