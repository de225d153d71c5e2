package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// MigrationOp selects what a migration run does
type MigrationOp struct {
	Up    bool
	Down  bool
	Steps int
}

// Migrator applies the embedded schema migrations of a dialect
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a migrator for the database at dsn
func NewMigrator(dialect Dialect, dsn string) (*Migrator, error) {
	sub, err := fs.Sub(migrations, "migrations/"+string(dialect))
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(dialect, dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return &Migrator{m: m}, nil
}

// migrationURL converts a store DSN to the URL form golang-migrate expects
func migrationURL(dialect Dialect, dsn string) string {
	if dialect == SQLite {
		return "sqlite://" + sqlitePath(dsn)
	}
	return dsn
}

// Run applies op. Nothing to do is not an error.
func (m *Migrator) Run(op MigrationOp) error {
	var err error
	switch {
	case op.Up:
		err = m.m.Up()
	case op.Down:
		err = m.m.Down()
	case op.Steps != 0:
		err = m.m.Steps(op.Steps)
	default:
		return errors.New("no migration operation selected")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Version returns the applied schema version
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Force sets the schema version without running migrations, clearing the dirty flag
func (m *Migrator) Force(version int) error {
	return m.m.Force(version)
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrateUp applies every pending migration
func MigrateUp(dialect Dialect, dsn string) error {
	m, err := NewMigrator(dialect, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Run(MigrationOp{Up: true})
}
