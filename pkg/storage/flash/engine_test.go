package flash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/robot-o/rudelblinken-go/pkg/metadata/memory"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *MemoryDevice) {
	t.Helper()

	dev := NewMemoryDevice(storage.Capacity)
	engine, err := NewEngine(dev, memory.NewStore(), nil)
	require.NoError(t, err)
	return engine, dev
}

func TestReadAfterWriteRoundTrip(t *testing.T) {
	engine, _ := newTestEngine(t)

	data := []byte("blinkenlights")
	addr := 3 * storage.BlockSize

	require.NoError(t, engine.Erase(addr, storage.BlockSize))
	require.NoError(t, engine.Write(addr, data))

	got, err := engine.Read(addr, uint32(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEraseYieldsAllOnes(t *testing.T) {
	engine, _ := newTestEngine(t)

	addr := 5 * storage.BlockSize
	require.NoError(t, engine.Write(addr, []byte{0x00, 0x12, 0x34}))
	require.NoError(t, engine.Erase(addr, 2*storage.BlockSize))

	got, err := engine.Read(addr, 2*storage.BlockSize)
	require.NoError(t, err)
	for i, b := range got {
		if b != 0xFF {
			t.Fatalf("byte %d after erase is %#02x, want 0xFF", i, b)
		}
	}
}

func TestDoubleWriteOnlyClearsBits(t *testing.T) {
	engine, _ := newTestEngine(t)

	first := []byte{0xF0, 0xCC, 0xFF, 0x81}
	second := []byte{0x0F, 0xAA, 0x55, 0x18}

	require.NoError(t, engine.Erase(0, storage.BlockSize))
	require.NoError(t, engine.Write(0, first))
	require.NoError(t, engine.Write(0, second))

	got, err := engine.Read(0, uint32(len(first)))
	require.NoError(t, err)

	want := make([]byte, len(first))
	for i := range first {
		want[i] = first[i] & second[i]
	}
	assert.Equal(t, want, got, "second write without erase must be the bitwise AND")
}

func TestEraseZeroLengthIsNoOp(t *testing.T) {
	engine, dev := newTestEngine(t)

	// Any address, including ones far outside the capacity.
	for _, addr := range []uint32{0, 17, storage.Capacity, storage.Capacity * 2, ^uint32(0)} {
		assert.NoError(t, engine.Erase(addr, 0), "erase(%d, 0)", addr)
	}
	assert.Zero(t, dev.EraseCalls, "zero-length erase must not touch the hardware")
}

func TestEraseAlignment(t *testing.T) {
	engine, dev := newTestEngine(t)

	cases := []struct {
		name   string
		addr   uint32
		length uint32
	}{
		{"unaligned address", 1, storage.BlockSize},
		{"unaligned length", 0, storage.BlockSize - 1},
		{"both unaligned", storage.BlockSize / 2, storage.BlockSize / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.Erase(tc.addr, tc.length)
			require.Error(t, err)
			assert.True(t, storage.IsCode(err, storage.ErrAlignment), "got %v", err)
		})
	}
	assert.Zero(t, dev.EraseCalls, "rejected erases must not touch the hardware")
}

func TestBoundsChecks(t *testing.T) {
	engine, dev := newTestEngine(t)

	t.Run("read", func(t *testing.T) {
		_, err := engine.Read(storage.Capacity, 1)
		assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)

		_, err = engine.Read(storage.Capacity-1, 2)
		assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)

		// Overflow of address+length must not wrap around.
		_, err = engine.Read(^uint32(0), 2)
		assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)
	})

	t.Run("write", func(t *testing.T) {
		err := engine.Write(storage.Capacity-1, []byte{0x00, 0x00})
		assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)
	})

	t.Run("erase", func(t *testing.T) {
		err := engine.Erase(storage.Capacity, storage.BlockSize)
		assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)

		err = engine.Erase(storage.Capacity-storage.BlockSize, 2*storage.BlockSize)
		assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)
	})

	assert.Zero(t, dev.ProgramCalls, "rejected writes must not touch the hardware")
	assert.Zero(t, dev.EraseCalls, "rejected erases must not touch the hardware")
}

// TestReadBoundIsSingleCapacity pins the read bound to the same single
// capacity bound as write and erase. Older firmware revisions accepted
// read ranges up to twice the capacity; that behavior is intentionally
// gone.
func TestReadBoundIsSingleCapacity(t *testing.T) {
	engine, _ := newTestEngine(t)

	// The last block is readable up to exactly the capacity.
	_, err := engine.Read(storage.Capacity-storage.BlockSize, storage.BlockSize)
	require.NoError(t, err)

	// One byte past the capacity is rejected, even though the old doubled
	// bound would have admitted it.
	_, err = engine.Read(storage.Capacity-storage.BlockSize, storage.BlockSize+1)
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrBounds), "got %v", err)
}

func TestReadIsZeroCopy(t *testing.T) {
	engine, _ := newTestEngine(t)

	view, err := engine.Read(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, view)

	// The view borrows mapped memory: a later write to the same range is
	// visible through it without re-reading.
	require.NoError(t, engine.Write(0, []byte{0x01, 0x02, 0x03, 0x04}))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, view)
}

// recordingMetrics captures RecordWrite calls for assertions.
type recordingMetrics struct {
	writes []int
}

func (r *recordingMetrics) RecordRead(bytes int, err error)  {}
func (r *recordingMetrics) RecordErase(bytes int, err error) {}
func (r *recordingMetrics) RecordWrite(bytes int, err error) {
	r.writes = append(r.writes, bytes)
}

func TestZeroLengthWrite(t *testing.T) {
	rec := &recordingMetrics{}
	dev := NewMemoryDevice(storage.Capacity)
	engine, err := NewEngine(dev, memory.NewStore(), rec)
	require.NoError(t, err)

	require.NoError(t, engine.Write(storage.Capacity, nil))
	assert.Zero(t, dev.ProgramCalls)

	// The successful no-op still shows up in the instrumentation, the same
	// way every other successful write does.
	assert.Equal(t, []int{0}, rec.writes)
}

func TestHardwareErrorsCarryDiagnostic(t *testing.T) {
	engine, dev := newTestEngine(t)
	dev.FailProgram = errors.New("ESP_ERR_FLASH_OP_TIMEOUT")
	dev.FailErase = errors.New("ESP_ERR_FLASH_OP_FAIL")

	err := engine.Write(0, []byte{0x00})
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrHardware))
	assert.Contains(t, err.Error(), "ESP_ERR_FLASH_OP_TIMEOUT")

	err = engine.Erase(0, storage.BlockSize)
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrHardware))
	assert.Contains(t, err.Error(), "ESP_ERR_FLASH_OP_FAIL")
}

func TestMetadataPassThrough(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ReadMetadata("missing")
	assert.True(t, storage.IsCode(err, storage.ErrMetadataNotFound), "got %v", err)

	value := bytes.Repeat([]byte{0x42}, 16)
	require.NoError(t, engine.WriteMetadata("k", value))

	got, err := engine.ReadMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestEngineRejectsShortWindow(t *testing.T) {
	dev := NewMemoryDevice(storage.Capacity - 1)
	_, err := NewEngine(dev, memory.NewStore(), nil)
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrMappingFailed), "got %v", err)
}
