// Package partition locates and validates the physical storage partition
// the block store lives in.
//
// On the device the partition table is burned into flash; here it is
// supplied by configuration and resolved against the compiled flash
// geometry before anything is mapped.
package partition

import (
	"fmt"

	"github.com/robot-o/rudelblinken-go/pkg/storage"
)

// Descriptor describes one physical partition of the flash image.
//
// A Descriptor is read-only after resolution: the resolver hands out copies
// and nothing downstream mutates them.
type Descriptor struct {
	// Label is the partition name used for lookup (the block store lives
	// in the partition labelled "storage" by default)
	Label string

	// Offset is the byte offset of the partition inside the flash image
	Offset uint32

	// Size is the partition size in bytes
	Size uint32

	// EraseSize is the erase granularity of the underlying flash.
	// Resolution fails unless it equals storage.BlockSize.
	EraseSize uint32
}

// Table is the set of partitions discovered on the device.
type Table struct {
	parts []Descriptor
}

// NewTable builds a partition table from the discovered descriptors.
//
// A device with no partitions at all cannot boot a filesystem; that is an
// unrecoverable startup assumption and panics rather than returning an
// error.
func NewTable(parts []Descriptor) *Table {
	if len(parts) == 0 {
		panic("partition: no partitions discoverable")
	}
	t := &Table{parts: make([]Descriptor, len(parts))}
	copy(t.parts, parts)
	return t
}

// Find resolves the partition with the given label and validates its
// geometry against the compiled flash constants.
//
// Returns:
//   - ErrPartitionNotFound if no partition carries the label
//   - ErrPartitionMisconfigured if the erase granularity does not equal
//     storage.BlockSize, or the partition does not span exactly
//     storage.Capacity bytes. Both are fatal configuration errors and must
//     not be retried.
func (t *Table) Find(label string) (Descriptor, error) {
	for _, p := range t.parts {
		if p.Label != label {
			continue
		}
		if p.EraseSize != storage.BlockSize {
			return Descriptor{}, &storage.StorageError{
				Code:    storage.ErrPartitionMisconfigured,
				Message: "partition erase size does not match block size",
				Detail:  fmt.Sprintf("label=%q erase_size=%d block_size=%d", label, p.EraseSize, storage.BlockSize),
			}
		}
		if p.Size != storage.Capacity {
			return Descriptor{}, &storage.StorageError{
				Code:    storage.ErrPartitionMisconfigured,
				Message: "partition size does not match storage capacity",
				Detail:  fmt.Sprintf("label=%q size=%d capacity=%d", label, p.Size, storage.Capacity),
			}
		}
		return p, nil
	}
	return Descriptor{}, &storage.StorageError{
		Code:    storage.ErrPartitionNotFound,
		Message: "no partition found with requested label",
		Detail:  label,
	}
}

// Describe returns the table contents for diagnostics (flashctl inspect).
func (t *Table) Describe() []Descriptor {
	out := make([]Descriptor, len(t.parts))
	copy(out, t.parts)
	return out
}
