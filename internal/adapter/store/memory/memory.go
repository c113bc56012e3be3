// Package memory provides an in-process geocode cache with no persistence.
package memory

import (
	"sync"

	"go.ngs.io/nearest-api/internal/adapter/store"
)

// Store keeps cache entries in a map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]store.Entry
	flushes int
}

// NewStore creates an empty in-memory cache, optionally seeded with entries.
func NewStore(seed map[string]store.Entry) *Store {
	entries := make(map[string]store.Entry, len(seed))
	for k, v := range seed {
		entries[k] = v
	}
	return &Store{entries: entries}
}

// Load is a no-op.
func (s *Store) Load() error { return nil }

// Get returns the entry for key.
func (s *Store) Get(key string) (store.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Put stores entry under key.
func (s *Store) Put(key string, entry store.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// Flush only counts calls so tests can observe persistence points.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flushes returns how many times Flush was called.
func (s *Store) Flushes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushes
}
