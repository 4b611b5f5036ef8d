// Package flash implements the block storage engine and the hardware
// abstraction underneath it: a memory-mapped file device standing in for
// the raw flash primitives, and an instrumented in-memory device for tests.
package flash

// Device abstracts the raw flash hardware primitives for one resolved
// partition. Offsets are partition-relative bytes.
//
// Devices perform no bounds or alignment validation of their own; the
// engine validates every range before a device method is invoked, so a
// device call with an invalid range is a programming error.
type Device interface {
	// Region returns the memory-mapped window spanning the entire
	// partition. The window is contiguous, stable for the process
	// lifetime, and reads through it are zero-copy.
	Region() []byte

	// Program writes data at offset with NOR semantics: bits can only be
	// cleared from 1 to 0, never set. The caller is responsible for
	// erasing beforehand if fresh 0xFF bytes are required.
	Program(offset uint32, data []byte) error

	// EraseRange resets [offset, offset+length) to 0xFF. The engine only
	// passes block-aligned, in-bounds ranges.
	EraseRange(offset, length uint32) error

	// Sync flushes programmed data to stable storage.
	Sync() error

	// Close releases the device. The mapped window must not be used
	// afterwards.
	Close() error
}
