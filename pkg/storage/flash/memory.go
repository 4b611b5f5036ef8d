package flash

// MemoryDevice is an instrumented in-memory Device for tests.
//
// It implements the same NOR semantics as real flash (program clears bits,
// erase fills 0xFF) over a plain buffer, counts every hardware call so
// tests can assert that rejected operations never touch the device, and can
// inject failures to exercise the hardware error paths.
type MemoryDevice struct {
	buf []byte

	// ProgramCalls counts Program invocations
	ProgramCalls int

	// EraseCalls counts EraseRange invocations
	EraseCalls int

	// FailProgram, when non-nil, is returned by every Program call after
	// the counter is bumped
	FailProgram error

	// FailErase, when non-nil, is returned by every EraseRange call after
	// the counter is bumped
	FailErase error
}

// NewMemoryDevice creates a blank in-memory device of the given size.
// Blank flash reads as all-ones.
func NewMemoryDevice(size uint32) *MemoryDevice {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0xFF
	}
	return &MemoryDevice{buf: buf}
}

// Region returns the backing buffer.
func (d *MemoryDevice) Region() []byte {
	return d.buf
}

// Program clears bits at offset according to data.
func (d *MemoryDevice) Program(offset uint32, data []byte) error {
	d.ProgramCalls++
	if d.FailProgram != nil {
		return d.FailProgram
	}
	target := d.buf[offset : int(offset)+len(data)]
	for i, b := range data {
		target[i] &= b
	}
	return nil
}

// EraseRange resets the range to 0xFF.
func (d *MemoryDevice) EraseRange(offset, length uint32) error {
	d.EraseCalls++
	if d.FailErase != nil {
		return d.FailErase
	}
	target := d.buf[offset : offset+length]
	for i := range target {
		target[i] = 0xFF
	}
	return nil
}

// Sync is a no-op for the in-memory device.
func (d *MemoryDevice) Sync() error { return nil }

// Close is a no-op for the in-memory device.
func (d *MemoryDevice) Close() error { return nil }
