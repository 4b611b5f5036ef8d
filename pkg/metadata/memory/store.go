// Package memory implements an in-memory metadata store for tests and for
// running the storage stack without a database on disk. Nothing persists
// across process restarts.
package memory

import (
	"fmt"
	"sync"

	"github.com/robot-o/rudelblinken-go/pkg/metadata"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
)

// Store is a map-backed metadata.Store.
//
// It keeps the same locking discipline as the persistent backend so the
// conformance suite exercises identical behavior.
type Store struct {
	mu      sync.Mutex
	entries map[string][]byte
	closed  bool
}

// NewStore creates an empty in-memory metadata store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// ReadMetadata returns a copy of the value stored under key.
func (s *Store) ReadMetadata(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.NewMetadataIOError("read", fmt.Errorf("store is closed"))
	}
	value, ok := s.entries[key]
	if !ok {
		return nil, storage.NewMetadataNotFoundError(key)
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// WriteMetadata upserts the blob under key.
func (s *Store) WriteMetadata(key string, value []byte) error {
	if len(value) > metadata.MaxValueSize {
		return storage.NewMetadataIOError("write",
			fmt.Errorf("value for %q is %d bytes, limit is %d", key, len(value), metadata.MaxValueSize))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.NewMetadataIOError("write", fmt.Errorf("store is closed"))
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[key] = stored
	return nil
}

// Close marks the store closed; later operations fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

var _ metadata.Store = (*Store)(nil)
