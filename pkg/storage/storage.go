// Package storage defines the contract for the lowest storage substrate of
// the rudelblinken device: a byte-addressable, erase-capable block store
// over a NOR-flash partition, plus a small persistent metadata side-store.
//
// The overlay filesystem (pkg/fs) is built directly on this contract and
// interprets raw blocks as files. Everything below it must enforce the
// hardware constraints correctly: erase granularity, write-only-clears-bits
// semantics, and address bounds.
package storage

// Flash geometry. These are compile-time constants of the device: the
// partition resolver refuses any partition whose erase granularity does not
// match BlockSize.
const (
	// BlockSize is the size in bytes of the minimal erasable unit.
	BlockSize uint32 = 4096

	// BlockCount is the number of blocks in the bulk block store.
	BlockCount uint32 = 256

	// Capacity is the total addressable size of the block store in bytes.
	Capacity uint32 = BlockSize * BlockCount
)

// Storage is the block storage contract consumed by the overlay filesystem.
//
// Address semantics:
// All addresses are byte offsets into the block store. Every operation,
// including Read, is bounded by the single capacity bound:
// address+length must not exceed Capacity. (Older firmware revisions
// admitted read addresses up to twice the capacity; that was a latent
// defect, not a wraparound feature, and is deliberately not reproduced
// here.)
//
// NOR semantics:
// Write can only clear bits from 1 to 0. It never sets bits back to 1 and
// it never erases; callers must Erase the target range first if they need
// fresh 0xFF bytes. Erase operates on whole blocks only.
//
// Concurrency:
// Concurrent Reads are safe. Write and Erase are NOT serialized against
// each other or against Reads of the same range; the caller must guarantee
// that a given address range has at most one mutator at a time, because
// concurrent program/erase of the same flash region is unsafe at the device
// level. ReadMetadata and WriteMetadata are internally serialized.
type Storage interface {
	// Read returns a view of length bytes at address, borrowed directly
	// from the memory-mapped flash window. The returned slice must not be
	// modified and stays valid for the process lifetime, though its
	// contents change if the range is later written or erased.
	Read(address, length uint32) ([]byte, error)

	// Write programs data at address. The target range must have been
	// erased beforehand; programming can only clear bits. A hardware
	// failure is reported as an ErrHardware StorageError carrying the
	// native diagnostic.
	Write(address uint32, data []byte) error

	// Erase resets the given range to 0xFF. length == 0 succeeds
	// immediately for any address without touching the hardware.
	// Otherwise address and length must both be multiples of BlockSize
	// and the range must lie inside the capacity.
	Erase(address, length uint32) error

	// ReadMetadata looks up a small named blob in the metadata namespace,
	// which is distinct from the block address space. A missing key is
	// ErrMetadataNotFound, never an IO error.
	ReadMetadata(key string) ([]byte, error)

	// WriteMetadata upserts a small named blob in the metadata namespace.
	WriteMetadata(key string, value []byte) error
}
