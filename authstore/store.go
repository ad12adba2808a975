// Package authstore is the node's authenticated attribute store: an
// embedded transactional table of per-identity attributes, written by
// the credential services and read by authorization checks.
package authstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lattice"

	_ "modernc.org/sqlite"
)

// Store is an embedded sqlite-backed attribute store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open authenticated storage: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS attributes (
	identity TEXT NOT NULL,
	attr TEXT NOT NULL,
	value BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (identity, attr)
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize attributes schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the backing database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores one attribute for an identity, replacing any prior value.
func (s *Store) Put(ctx context.Context, identityID, attr string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attributes (identity, attr, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(identity, attr) DO UPDATE SET
		 value = excluded.value,
		 updated_at = excluded.updated_at`,
		identityID, attr, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put attribute %q for %q: %w", attr, identityID, err)
	}
	return nil
}

// Get returns one attribute value.
func (s *Store) Get(ctx context.Context, identityID, attr string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM attributes WHERE identity = ? AND attr = ?`,
		identityID, attr,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lattice.NotFoundf("no attribute %q for identity %q", attr, identityID)
	}
	if err != nil {
		return nil, fmt.Errorf("get attribute %q for %q: %w", attr, identityID, err)
	}
	return value, nil
}

// Del removes one attribute. Deleting an absent attribute is not an error.
func (s *Store) Del(ctx context.Context, identityID, attr string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM attributes WHERE identity = ? AND attr = ?`,
		identityID, attr,
	)
	if err != nil {
		return fmt.Errorf("delete attribute %q for %q: %w", attr, identityID, err)
	}
	return nil
}

// List returns all attributes recorded for an identity.
func (s *Store) List(ctx context.Context, identityID string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attr, value FROM attributes WHERE identity = ? ORDER BY attr`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attributes for %q: %w", identityID, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var attr string
		var value []byte
		if err := rows.Scan(&attr, &value); err != nil {
			return nil, fmt.Errorf("scan attribute row: %w", err)
		}
		out[attr] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attribute rows: %w", err)
	}
	return out, nil
}
