// Package badger implements the metadata store adapter over BadgerDB, the
// persistent key-value store standing in for the device NVS partition.
package badger

import (
	"context"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/robot-o/rudelblinken-go/pkg/metadata"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
)

// Store implements metadata.Store using BadgerDB for persistence.
//
// Entries survive restarts, which is the whole point of the metadata
// namespace: the overlay filesystem keeps its scan anchor and other small
// state here rather than in the bulk block store.
//
// Thread Safety:
// Every operation takes the store mutex around the database handle before
// use and releases it on every exit path. The handle is treated as
// non-reentrant, matching the contract of the NVS handle it replaces;
// coarse single-mutex locking is correct and the operations are small
// enough that contention does not matter.
type Store struct {
	// mu serializes all access to db
	mu sync.Mutex

	// db is the BadgerDB database handle
	db *badger.DB

	// namespace prefixes every key, keeping the filesystem metadata
	// distinct from anything else sharing the database
	namespace string
}

// Config contains configuration for creating a Badger metadata store.
type Config struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string

	// Namespace prefixes all keys. Empty means metadata.DefaultNamespace.
	Namespace string

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, defaults tuned for the tiny metadata workload are used.
	BadgerOptions *badger.Options
}

// NewStore opens (or creates) the metadata namespace at the configured
// path. The returned store is ready for use and safe for concurrent
// access.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.BadgerOptions != nil {
		opts = *cfg.BadgerOptions
	} else {
		opts = badger.DefaultOptions(cfg.DBPath)

		// The metadata workload is a handful of sub-256-byte values:
		// compression and big caches only add overhead.
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)
		opts = opts.WithBlockCacheSize(8 << 20)
		opts = opts.WithIndexCacheSize(4 << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = metadata.DefaultNamespace
	}

	return &Store{db: db, namespace: namespace}, nil
}

// key builds the namespaced database key for a metadata entry.
func (s *Store) key(key string) []byte {
	return []byte(s.namespace + "/" + key)
}

// ReadMetadata returns a copy of the value stored under key.
//
// A missing key is storage.ErrMetadataNotFound; any database failure is
// storage.ErrMetadataIO.
func (s *Store) ReadMetadata(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, storage.NewMetadataNotFoundError(key)
	}
	if err != nil {
		return nil, storage.NewMetadataIOError("read", err)
	}
	if len(value) > metadata.MaxValueSize {
		// Cannot happen through WriteMetadata; guards against foreign
		// writers sharing the database.
		return nil, storage.NewMetadataIOError("read",
			fmt.Errorf("value for %q is %d bytes, read buffer is %d", key, len(value), metadata.MaxValueSize))
	}
	return value, nil
}

// WriteMetadata upserts the blob under key.
func (s *Store) WriteMetadata(key string, value []byte) error {
	if len(value) > metadata.MaxValueSize {
		return storage.NewMetadataIOError("write",
			fmt.Errorf("value for %q is %d bytes, limit is %d", key, len(value), metadata.MaxValueSize))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), value)
	})
	if err != nil {
		return storage.NewMetadataIOError("write", err)
	}
	return nil
}

// Close closes the database and releases all resources. The store must not
// be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

var _ metadata.Store = (*Store)(nil)
