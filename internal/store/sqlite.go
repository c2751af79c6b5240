// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SchemaVersion is the version recorded in new databases. Opening a
// database written with any other version fails.
const SchemaVersion = "1"

// SQLite is a SQLite-backed store.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite creates a new SQLite store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS expansions (
			key TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			output TEXT NOT NULL,
			created INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS archive (
			source TEXT NOT NULL,
			version INTEGER NOT NULL,
			output TEXT NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (source, version)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	version, err := s.getMetadata("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}

	switch version {
	case "":
		if err := s.setMetadata("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// Get retrieves an expansion by key.
func (s *SQLite) Get(key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{Key: key}
	var created int64
	err := s.db.QueryRow("SELECT source, output, created FROM expansions WHERE key = ?", key).
		Scan(&e.Source, &e.Output, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.Created = time.Unix(0, created)
	return e, true, nil
}

// Put caches an expansion and archives its output in one transaction.
func (s *SQLite) Put(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Created.IsZero() {
		e.Created = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO expansions (key, source, output, created) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source = excluded.source, output = excluded.output, created = excluded.created
	`, e.Key, e.Source, e.Output, e.Created.UnixNano())
	if err != nil {
		return err
	}

	var version int
	var last sql.NullString
	err = tx.QueryRow(`
		SELECT version, output FROM archive WHERE source = ? ORDER BY version DESC LIMIT 1
	`, e.Source).Scan(&version, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if last.Valid && last.String == e.Output {
		return tx.Commit()
	}

	_, err = tx.Exec(`
		INSERT INTO archive (source, version, output, ts) VALUES (?, ?, ?, ?)
	`, e.Source, version+1, e.Output, e.Created.UTC().Format(time.DateTime))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a cached expansion.
func (s *SQLite) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM expansions WHERE key = ?", key)
	return err
}

// History returns archived outputs of source, newest first.
func (s *SQLite) History(source string, limit int) ([]VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT version, output, ts FROM archive WHERE source = ? ORDER BY version DESC LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []VersionEntry
	for rows.Next() {
		var v VersionEntry
		if err := rows.Scan(&v.Version, &v.Value, &v.Ts); err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}
	return entries, rows.Err()
}

// Forget removes the archive of source.
func (s *SQLite) Forget(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM archive WHERE source = ?", source)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// getMetadata reads a metadata value. It runs before the store is shared, so
// it takes no lock.
func (s *SQLite) getMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLite) setMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
