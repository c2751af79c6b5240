// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"sync"
	"time"
)

// Memory is an in-memory store, used when no cache directory is configured
// and in tests.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]Entry
	history map[string][]VersionEntry
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:    make(map[string]Entry),
		history: make(map[string][]VersionEntry),
	}
}

// Get retrieves an expansion by key.
func (m *Memory) Get(key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	return e, ok, nil
}

// Put caches an expansion and archives its output.
func (m *Memory) Put(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Created.IsZero() {
		e.Created = time.Now()
	}
	m.data[e.Key] = e

	versions := m.history[e.Source]
	if n := len(versions); n > 0 && versions[n-1].Value == e.Output {
		return nil
	}
	m.history[e.Source] = append(versions, VersionEntry{
		Version: len(versions) + 1,
		Value:   e.Output,
		Ts:      e.Created.UTC().Format(time.DateTime),
	})
	return nil
}

// Delete removes a cached expansion.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// History returns archived outputs of source, newest first.
func (m *Memory) History(source string, limit int) ([]VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.history[source]
	if len(versions) == 0 {
		return nil, nil
	}
	out := make([]VersionEntry, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, versions[i])
	}
	return out, nil
}

// Forget removes the archive of source.
func (m *Memory) Forget(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, source)
	return nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}
