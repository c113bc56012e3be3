// Package jsonfile provides a geocode cache persisted as a single JSON object.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/adapter/store"
)

// Store is a GeocodeCache backed by a JSON file mapping normalized address to
// {lat, lon, display}. The whole file is rewritten on every Flush.
type Store struct {
	path    string
	logger  log.FieldLogger
	entries map[string]store.Entry
	mu      sync.RWMutex
}

// NewStore creates a store for the file at path. Call Load before use.
func NewStore(path string, logger log.FieldLogger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		path:    path,
		logger:  logger.WithField("cache", path),
		entries: make(map[string]store.Entry),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache file. A missing file is an empty cache. A file that
// cannot be read or decoded is logged and also treated as empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]store.Entry)

	//nolint:gosec // G304: Cache path comes from configuration.
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("action: load_cache | result: empty | reason: no file")
		return nil
	}
	if err != nil {
		s.logger.WithError(err).Warn("action: load_cache | result: fail | fallback: empty cache")
		return nil
	}

	var raw map[string]*store.Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.WithError(err).Warn("action: load_cache | result: corrupt | fallback: empty cache")
		return nil
	}

	// Older caches may hold null for failed lookups; those are skipped so the
	// address is retried.
	for key, e := range raw {
		if e == nil {
			continue
		}
		s.entries[key] = *e
	}

	s.logger.Debugf("action: load_cache | result: success | entries: %d", len(s.entries))
	return nil
}

// Get returns the entry for key.
func (s *Store) Get(key string) (store.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Put stores entry under key in memory. It is persisted on the next Flush.
func (s *Store) Put(key string, entry store.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// Len returns the number of cached addresses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush rewrites the cache file with indented JSON.
func (s *Store) Flush() error {
	s.mu.RLock()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(s.entries)
	n := len(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if err := writeFile(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", s.path, err)
	}
	s.logger.Debugf("action: flush_cache | result: success | entries: %d", n)
	return nil
}

// writeFile writes p to a temp file next to filename and renames it into place.
func writeFile(filename string, p []byte) (err error) {
	dir := filepath.Dir(filename)
	//nolint:gosec // G301: Cache directory is user data, not secret.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "tmp.")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(p); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), filename)
}
