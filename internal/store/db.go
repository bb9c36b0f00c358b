// Package store persists normalized work items and sync pass records in
// a relational database and serves the derived queries reports are built
// on. SQLite is the default backend; Postgres is supported for
// deployments where a dashboard reads the same database.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/nhle/outline-metrics/internal/model"
)

// Store wraps the database connection for one configured backend.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured database, applies driver pragmas, and
// runs any pending schema migrations.
func Open(cfg model.DatabaseConfig) (*Store, error) {
	var db *sqlx.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = sqlx.Open("sqlite", cfg.DSN)
	case "postgres":
		db, err = sqlx.Open("pgx", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// WAL keeps dashboard reads from blocking behind a sync pass.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
		// A second pass started while one is running waits instead of
		// failing with SQLITE_BUSY.
		if _, err := db.Exec("PRAGMA busy_timeout=10000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
		// sqlite is single-writer anyway; one pooled connection avoids
		// lock churn and keeps :memory: databases coherent.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	exists, err := s.schemaVersionTableExists()
	if err != nil {
		return err
	}
	if exists {
		err = s.db.Get(&currentVersion,
			"SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// schemaVersionTableExists probes the driver's catalog for the
// schema_version table.
func (s *Store) schemaVersionTableExists() (bool, error) {
	var query string
	switch s.driver {
	case "sqlite":
		query = "SELECT COUNT(*) FROM sqlite_master" +
			" WHERE type='table' AND name='schema_version'"
	case "postgres":
		query = "SELECT COUNT(*) FROM information_schema.tables" +
			" WHERE table_name='schema_version'"
	}

	var count int
	if err := s.db.Get(&count, query); err != nil {
		return false, fmt.Errorf("checking schema_version table: %w", err)
	}
	return count > 0, nil
}

// boolToInt converts a boolean to 0 or 1 for portable storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
