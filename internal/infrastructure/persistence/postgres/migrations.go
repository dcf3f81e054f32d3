package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/campusnote/termcycle/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus describes the schema version after a migration run.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrate applies every pending migration.
func (c *Connection) Migrate(log *logger.Logger) (*MigrationStatus, error) {
	log = logger.OrNop(log)

	m, err := c.newMigrate()
	if err != nil {
		return nil, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	status := &MigrationStatus{}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("%w: read version: %v", ErrMigrationFailed, err)
	}
	status.Version, status.Dirty = version, dirty

	if dirty {
		log.Warn("database migration is dirty", "version", version)
	} else {
		log.Info("database migrated", "version", version)
	}
	return status, nil
}

// MigrateDown reverts every migration. Used by tests.
func (c *Connection) MigrateDown() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}

func (c *Connection) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%w: load migrations: %v", ErrMigrationFailed, err)
	}

	db := stdlib.OpenDBFromPool(c.Pool())
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create driver: %v", ErrMigrationFailed, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("%w: init: %v", ErrMigrationFailed, err)
	}
	return m, nil
}
