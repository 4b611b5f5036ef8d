package flash

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/robot-o/rudelblinken-go/pkg/storage/partition"
)

// FileDevice backs the flash partition with a memory-mapped image file.
//
// The whole image is mapped with a single Map call, which guarantees the
// partition window is one logically contiguous region; the firmware had to
// stitch this together from page-sized mmap calls, a detail that does not
// exist here. The mapping stays in place for the device lifetime and is
// only torn down by Close.
//
// Program and EraseRange mutate the mapped bytes directly and flush, which
// models the synchronous flash primitives: once either returns, the data is
// on stable storage.
type FileDevice struct {
	file   *os.File
	mmap   mmap.MMap
	window []byte
}

// OpenFileDevice opens the flash image at path and maps the partition
// described by desc. The image must already cover the partition range; a
// short image or a failed mapping yields ErrMappingFailed.
func OpenFileDevice(path string, desc partition.Descriptor) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, storage.NewMappingError(err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, storage.NewMappingError(err)
	}
	end := uint64(desc.Offset) + uint64(desc.Size)
	if uint64(info.Size()) < end {
		_ = f.Close()
		return nil, storage.NewMappingError(fmt.Errorf(
			"image %s is %d bytes, partition %q needs %d", path, info.Size(), desc.Label, end))
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, storage.NewMappingError(err)
	}

	return &FileDevice{
		file:   f,
		mmap:   mm,
		window: mm[int64(desc.Offset):int64(end)],
	}, nil
}

// CreateImage creates a blank flash image of the given size at path.
// Blank flash reads as all-ones, so every byte is 0xFF.
func CreateImage(path string, size uint32) error {
	blank := make([]byte, size)
	for i := range blank {
		blank[i] = 0xFF
	}
	return os.WriteFile(path, blank, 0o644)
}

// Region returns the mapped partition window.
func (d *FileDevice) Region() []byte {
	return d.window
}

// Program clears bits at offset according to data and flushes.
func (d *FileDevice) Program(offset uint32, data []byte) error {
	target := d.window[offset : int(offset)+len(data)]
	for i, b := range data {
		target[i] &= b
	}
	if err := d.mmap.Flush(); err != nil {
		return fmt.Errorf("flush after program at %d: %w", offset, err)
	}
	return nil
}

// EraseRange resets the range to 0xFF and flushes.
func (d *FileDevice) EraseRange(offset, length uint32) error {
	target := d.window[offset : offset+length]
	for i := range target {
		target[i] = 0xFF
	}
	if err := d.mmap.Flush(); err != nil {
		return fmt.Errorf("flush after erase at %d: %w", offset, err)
	}
	return nil
}

// Sync flushes the mapping to the image file.
func (d *FileDevice) Sync() error {
	return d.mmap.Flush()
}

// Close flushes, unmaps and closes the image file.
func (d *FileDevice) Close() error {
	flushErr := d.mmap.Flush()
	unmapErr := d.mmap.Unmap()
	closeErr := d.file.Close()

	return errors.Join(flushErr, unmapErr, closeErr)
}
