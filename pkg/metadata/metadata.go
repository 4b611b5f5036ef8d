// Package metadata defines the persistent key-value side-store used for
// small, frequently changing values that do not belong in the bulk block
// address space (the NVS partition on the device).
//
// The namespace contents are opaque to this layer; the overlay filesystem
// decides what the blobs mean.
package metadata

// MaxValueSize bounds every metadata value. The firmware reads values into
// a fixed 256-byte buffer, so anything larger can never round-trip and is
// rejected at write time.
const MaxValueSize = 256

// DefaultNamespace is the key namespace the filesystem stores its
// metadata under.
const DefaultNamespace = "filesystem1"

// Store is the metadata store adapter contract.
//
// Thread Safety:
// Implementations serialize ReadMetadata and WriteMetadata through an
// internal lock, because the underlying store handle is not safely
// reentrant. The lock is blocking with no timeout; contention is expected
// to be rare and each operation is fast.
type Store interface {
	// ReadMetadata returns a copy of the value stored under key.
	// A missing key yields storage.ErrMetadataNotFound, never an IO error.
	ReadMetadata(key string) ([]byte, error)

	// WriteMetadata upserts the value under key. Values larger than
	// MaxValueSize are rejected with storage.ErrMetadataIO.
	WriteMetadata(key string, value []byte) error

	// Close releases the underlying store handle.
	Close() error
}
