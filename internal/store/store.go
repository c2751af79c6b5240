// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package store persists mash expansions: a cache keyed by content hash and
// a versioned archive of outputs per source name.
package store

import "time"

// Entry is one cached expansion.
type Entry struct {
	Key     string
	Source  string
	Output  string
	Created time.Time
}

// Store is the interface for expansion persistence.
type Store interface {
	// Get retrieves an expansion by key. The bool is false if not found.
	Get(key string) (Entry, bool, error)
	// Put caches an expansion, overwriting if the key exists, and archives
	// its output under the entry's source name.
	Put(e Entry) error
	// Delete removes a cached expansion. Archived outputs are kept.
	Delete(key string) error
	// Close releases resources.
	Close() error
}

// VersionEntry represents a single archived output of a source.
type VersionEntry struct {
	Version int
	Value   string
	Ts      string
}

// HistoryStore extends Store with archive queries.
type HistoryStore interface {
	// History returns archived outputs newest first. limit <= 0 means all.
	History(source string, limit int) ([]VersionEntry, error)
	// Forget removes every archived output of source.
	Forget(source string) error
}
