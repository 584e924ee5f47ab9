// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package store holds the shared context of a run: the values produced by
// nodes, keyed by node id, node name and the reserved task key.
package store

import (
	"sync"

	"autoswarm/pkg/types"
)

// Store is a key/value store of context entries. Entries are overwritten,
// never deleted, until Clear. Keys are reported in first-insertion order.
type Store struct {
	mu      sync.RWMutex
	entries map[string]types.ContextEntry
	order   []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]types.ContextEntry),
	}
}

// Set inserts or overwrites the entry for key.
func (s *Store) Set(key string, entry types.ContextEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = entry
}

// Get returns the entry for key and whether it exists.
func (s *Store) Get(key string) (types.ContextEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return entry, ok
}

// Has reports whether key has an entry.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys returns every key in first-insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]types.ContextEntry)
	s.order = nil
}

// Snapshot returns a copy of the store's entries. Later writes to the store
// do not affect the returned map. Entry values are shared, not deep copied.
func (s *Store) Snapshot() map[string]types.ContextEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]types.ContextEntry, len(s.entries))
	for k, v := range s.entries {
		snap[k] = v
	}
	return snap
}
