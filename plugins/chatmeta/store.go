// ABOUTME: Database layer for the chatmeta plugin.
// ABOUTME: Stores prefix, suffix, and info nodes for players and groups per world.

package chatmeta

import (
	"database/sql"
	"errors"
)

// Subject kinds stored in chatmeta_entries.
const (
	subjectPlayer = "player"
	subjectGroup  = "group"
)

// Reserved node names for prefixes and suffixes.
const (
	nodePrefix = "prefix"
	nodeSuffix = "suffix"
)

type ChatMetaStore struct {
	db *sql.DB
}

func NewChatMetaStore(db *sql.DB) (*ChatMetaStore, error) {
	if db == nil {
		return nil, errors.New("chatmeta requires a database")
	}
	store := &ChatMetaStore{db: db}
	if err := store.initTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *ChatMetaStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS chatmeta_entries (
			subject TEXT NOT NULL,
			world TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL COLLATE NOCASE,
			node TEXT NOT NULL COLLATE NOCASE,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (subject, world, name, node)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chatmeta_name ON chatmeta_entries(subject, name)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

type Entry struct {
	Subject string
	World   string
	Name    string
	Node    string
	Value   string
}

// Get looks node up in world and then in the global scope.
func (s *ChatMetaStore) Get(subject, world, name, node string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM chatmeta_entries
		 WHERE subject = ? AND name = ? AND node = ? AND world IN (?, '')
		 ORDER BY world = '' LIMIT 1`,
		subject, name, node, world,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value; an empty value deletes the entry.
func (s *ChatMetaStore) Set(subject, world, name, node, value string) error {
	if value == "" {
		_, err := s.db.Exec(
			`DELETE FROM chatmeta_entries WHERE subject = ? AND world = ? AND name = ? AND node = ?`,
			subject, world, name, node,
		)
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO chatmeta_entries (subject, world, name, node, value)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(subject, world, name, node)
		 DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		subject, world, name, node, value,
	)
	return err
}

func (s *ChatMetaStore) List(subject string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT subject, world, name, node, value FROM chatmeta_entries
		 WHERE subject = ? ORDER BY name, world, node LIMIT ? OFFSET ?`,
		subject, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Subject, &e.World, &e.Name, &e.Node, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
