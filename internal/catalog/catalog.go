// Package catalog persists the channel catalog (channels.json) and provides
// the in-memory channel registry shared across the playback engine.
package catalog

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lintv/lintv/internal/models"
	"github.com/lintv/lintv/internal/storage"
)

// Store loads and persists the channel catalog to a single JSON file, keyed
// by channel id, rewritten whole via Sandbox.AtomicWrite after every mutation.
type Store struct {
	sandbox      *storage.Sandbox
	catalogPath  string // relative to sandbox

	mu       sync.RWMutex
	channels map[string]*models.Channel
}

// NewStore loads the catalog from catalogPath within sandbox, creating an
// empty catalog if the file does not yet exist.
func NewStore(sandbox *storage.Sandbox, catalogPath string) (*Store, error) {
	s := &Store{
		sandbox:     sandbox,
		catalogPath: catalogPath,
		channels:    make(map[string]*models.Channel),
	}

	exists, err := sandbox.Exists(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("checking catalog file: %w", err)
	}
	if !exists {
		return s, nil
	}

	data, err := sandbox.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var channels map[string]*models.Channel
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	s.channels = channels

	return s, nil
}

// Get returns a copy-free pointer to the channel record, or false if absent.
// Callers must hold their own synchronization if mutating the queue; Put
// should be called afterward to persist the change.
func (s *Store) Get(id string) (*models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ch, ok
}

// All returns a snapshot slice of all channels in the catalog.
func (s *Store) All() []*models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Put inserts or replaces a channel record and persists the full catalog.
func (s *Store) Put(ch *models.Channel) error {
	s.mu.Lock()
	s.channels[ch.ID.String()] = ch
	s.mu.Unlock()

	return s.persist()
}

// Delete removes a channel record and persists the full catalog.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	delete(s.channels, id)
	s.mu.Unlock()

	return s.persist()
}

// persist rewrites the whole catalog file atomically. It must not be called
// while holding s.mu, since AtomicWrite does its own I/O under the sandbox.
func (s *Store) persist() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.channels, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}

	if err := s.sandbox.AtomicWrite(s.catalogPath, data); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	return nil
}
