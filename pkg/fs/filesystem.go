// Package fs holds the overlay filesystem built on top of the block
// storage substrate. It reconstructs the file layout by scanning raw
// blocks for file headers; allocation and file IO semantics live above
// this package.
package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/robot-o/rudelblinken-go/internal/logger"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
)

const (
	// HeaderSize is the size of the on-flash file header. Each file starts
	// on a block boundary with one header followed by the payload.
	HeaderSize = 64

	// FirstBlockKey is the metadata key holding the block index where the
	// layout scan starts. It moves as the overlay layer rotates files
	// through the flash.
	FirstBlockKey = "first_block"
)

// headerMagic marks a block that starts a file.
var headerMagic = [4]byte{'r', 'b', 'f', 's'}

// FileInfo describes one file found during the layout scan.
type FileInfo struct {
	// Name is the file name from the header, without padding
	Name string

	// Address is the byte address of the header inside the block store
	Address uint32

	// Length is the payload length in bytes, excluding the header
	Length uint32
}

// Filesystem is the overlay filesystem view over a Storage instance.
//
// It holds a reference to, but does not own, the storage: closing or
// replacing the storage is the lifecycle manager's business.
type Filesystem struct {
	storage storage.Storage
	files   []FileInfo
	used    *bitset.BitSet
}

// New scans the block store and reconstructs the file layout.
//
// The scan starts at the block index stored under FirstBlockKey (absent
// key means block zero), walks the store modulo the block count, and
// advances past each file's payload blocks. Blocks whose first bytes are
// not a valid header are treated as free.
func New(store storage.Storage) (*Filesystem, error) {
	firstBlock, err := readFirstBlock(store)
	if err != nil {
		return nil, err
	}

	fsys := &Filesystem{
		storage: store,
		used:    bitset.New(uint(storage.BlockCount)),
	}

	for block := uint32(0); block < storage.BlockCount; {
		current := (block + firstBlock) % storage.BlockCount
		address := current * storage.BlockSize

		header, err := store.Read(address, HeaderSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read header at block %d: %w", current, err)
		}

		info, ok := parseHeader(address, header)
		if !ok {
			block++
			continue
		}

		// A file occupies its header block plus however many blocks the
		// payload spills into.
		span := (info.Length+HeaderSize)/storage.BlockSize + 1
		for i := uint32(0); i < span; i++ {
			fsys.used.Set(uint((current + i) % storage.BlockCount))
		}

		fsys.files = append(fsys.files, info)
		block += span
	}

	return fsys, nil
}

// readFirstBlock loads the scan anchor from the metadata namespace.
// The value is a little-endian uint16 block index. A missing or malformed
// value falls back to block zero: the anchor is an optimization for
// rotated layouts, and the modulo walk visits every block from any start,
// so a corrupt anchor must not keep the device from mounting.
func readFirstBlock(store storage.Storage) (uint32, error) {
	value, err := store.ReadMetadata(FirstBlockKey)
	if err != nil {
		if storage.IsCode(err, storage.ErrMetadataNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read first block anchor: %w", err)
	}
	if len(value) != 2 {
		logger.Warn("First block anchor has %d bytes, want 2; scanning from block zero", len(value))
		return 0, nil
	}
	return uint32(binary.LittleEndian.Uint16(value)) % storage.BlockCount, nil
}

// parseHeader decodes a file header, reporting false for anything that is
// not one: wrong magic, erased bytes, or a length that cannot fit.
func parseHeader(address uint32, header []byte) (FileInfo, bool) {
	if !bytes.Equal(header[:4], headerMagic[:]) {
		return FileInfo{}, false
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	if uint64(length)+HeaderSize > uint64(storage.Capacity) {
		return FileInfo{}, false
	}
	name := header[8:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return FileInfo{
		Name:    string(name),
		Address: address,
		Length:  length,
	}, true
}

// EncodeHeader builds the on-flash header for a file. Exposed for the
// layers above that allocate and write files.
func EncodeHeader(name string, length uint32) ([]byte, error) {
	if len(name) > HeaderSize-8-1 {
		return nil, fmt.Errorf("file name %q exceeds %d bytes", name, HeaderSize-8-1)
	}
	header := make([]byte, HeaderSize)
	copy(header[:4], headerMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], length)
	copy(header[8:], name)
	return header, nil
}

// Files returns the files found during the scan.
func (f *Filesystem) Files() []FileInfo {
	out := make([]FileInfo, len(f.files))
	copy(out, f.files)
	return out
}

// UsedBlocks returns how many blocks are occupied by files.
func (f *Filesystem) UsedBlocks() uint {
	return f.used.Count()
}

// FreeBlocks returns how many blocks carry no file data.
func (f *Filesystem) FreeBlocks() uint {
	return uint(storage.BlockCount) - f.used.Count()
}

// Storage returns the underlying storage handle.
func (f *Filesystem) Storage() storage.Storage {
	return f.storage
}
