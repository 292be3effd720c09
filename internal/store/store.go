// ABOUTME: Core SQLite store for the vault host.
// ABOUTME: Handles database initialization, migrations, and connection management for the binding audit log.

package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Migration version constants
const (
	MigrationV1 = 1 // Initial schema with binding_events table
	MigrationV2 = 2 // Add indexes for owner and kind filtering
)

// CurrentSchemaVersion is the target version for the database schema
const CurrentSchemaVersion = MigrationV2

type Store struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func New(dbPath string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pooling
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0) // Connections don't expire

	// Enable foreign keys and WAL mode
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db, log: log.WithField("component", "store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection for plugins
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// migrate runs all pending migrations
func (s *Store) migrate() error {
	if err := s.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := s.getCurrentMigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"current": currentVersion,
		"target":  CurrentSchemaVersion,
	}).Debug("database schema version")

	if currentVersion < MigrationV1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if currentVersion < MigrationV2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations tracking table
func (s *Store) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`)
	return err
}

// getCurrentMigrationVersion retrieves the current schema version
func (s *Store) getCurrentMigrationVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// recordMigration records a completed migration
func (s *Store) recordMigration(version int, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO schema_migrations (version, description)
		VALUES (?, ?)
	`, version, description)
	return err
}

// migrateV1 creates the binding_events table
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS binding_events (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		op TEXT NOT NULL,
		kind TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		registration_id INTEGER NOT NULL DEFAULT 0,
		from_provider TEXT NOT NULL DEFAULT '',
		to_provider TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_binding_events_seq ON binding_events(seq DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.recordMigration(MigrationV1, "Create binding_events table"); err != nil {
		return err
	}

	s.log.Infof("Applied migration v%d: Create binding_events table", MigrationV1)
	return nil
}

// migrateV2 adds filter indexes used by the admin events view
func (s *Store) migrateV2() error {
	indexes := []string{
		// Owner filter in ListEvents
		"CREATE INDEX IF NOT EXISTS idx_binding_events_owner ON binding_events(owner, seq DESC)",

		// Kind filter and per-kind rebind history
		"CREATE INDEX IF NOT EXISTS idx_binding_events_kind_op ON binding_events(kind, op, seq DESC)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.recordMigration(MigrationV2, "Add owner and kind indexes"); err != nil {
		return err
	}

	s.log.Infof("Applied migration v%d: Add owner and kind indexes", MigrationV2)
	return nil
}
