package flash

import (
	"errors"

	"github.com/robot-o/rudelblinken-go/pkg/metadata"
	"github.com/robot-o/rudelblinken-go/pkg/metrics"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
)

// Engine is the block storage engine: bounds- and alignment-checked read,
// write and erase over a mapped partition window, plus the metadata
// side-store. It is the concrete storage.Storage handed to the overlay
// filesystem.
//
// Every address is validated in 64-bit arithmetic before any view is
// produced or any hardware primitive is invoked, so a rejected operation
// performs zero hardware access.
//
// Concurrency follows the storage.Storage contract: reads need no
// locking, mutations of a given range must be externally serialized, and
// the metadata store serializes itself.
type Engine struct {
	dev     Device
	meta    metadata.Store
	metrics metrics.StorageMetrics
}

// NewEngine assembles an engine over an opened device and metadata store.
// The engine takes ownership of both; Close releases them. A nil metrics
// implementation falls back to the no-op one.
func NewEngine(dev Device, meta metadata.Store, m metrics.StorageMetrics) (*Engine, error) {
	if uint64(len(dev.Region())) < uint64(storage.Capacity) {
		return nil, storage.NewMappingError(errors.New("mapped window smaller than storage capacity"))
	}
	if m == nil {
		m = metrics.NewNoopStorageMetrics()
	}
	return &Engine{dev: dev, meta: meta, metrics: m}, nil
}

// checkBounds validates [address, address+length) against the capacity in
// overflow-safe arithmetic.
func checkBounds(address, length uint32) error {
	if uint64(address)+uint64(length) > uint64(storage.Capacity) {
		return storage.NewBoundsError(address, length)
	}
	return nil
}

// Read returns a zero-copy view of the mapped window.
//
// The bound is the same single capacity bound as write and erase. The
// returned slice aliases flash memory: it must not be written to, and its
// contents follow later Write/Erase calls over the same range.
func (e *Engine) Read(address, length uint32) ([]byte, error) {
	if err := checkBounds(address, length); err != nil {
		e.metrics.RecordRead(int(length), err)
		return nil, err
	}
	e.metrics.RecordRead(int(length), nil)
	return e.dev.Region()[address : address+length], nil
}

// Write programs data at address via the raw hardware write primitive.
//
// The engine does not erase first; programming over unerased bytes only
// ever clears bits. A zero-length write is a no-op.
func (e *Engine) Write(address uint32, data []byte) error {
	if err := checkBounds(address, uint32(len(data))); err != nil {
		e.metrics.RecordWrite(len(data), err)
		return err
	}
	if len(data) == 0 {
		e.metrics.RecordWrite(0, nil)
		return nil
	}
	if err := e.dev.Program(address, data); err != nil {
		hwErr := storage.NewHardwareError("write", err)
		e.metrics.RecordWrite(len(data), hwErr)
		return hwErr
	}
	e.metrics.RecordWrite(len(data), nil)
	return nil
}

// Erase resets [address, address+length) to 0xFF.
//
// length == 0 is an idempotent no-op returning success immediately for any
// address, including out-of-range ones. Alignment is checked before bounds;
// neither rejection touches the hardware.
func (e *Engine) Erase(address, length uint32) error {
	if length == 0 {
		return nil
	}
	if address%storage.BlockSize != 0 || length%storage.BlockSize != 0 {
		err := storage.NewAlignmentError(address, length)
		e.metrics.RecordErase(int(length), err)
		return err
	}
	if err := checkBounds(address, length); err != nil {
		e.metrics.RecordErase(int(length), err)
		return err
	}
	if err := e.dev.EraseRange(address, length); err != nil {
		hwErr := storage.NewHardwareError("erase", err)
		e.metrics.RecordErase(int(length), hwErr)
		return hwErr
	}
	e.metrics.RecordErase(int(length), nil)
	return nil
}

// ReadMetadata looks up key in the metadata namespace.
func (e *Engine) ReadMetadata(key string) ([]byte, error) {
	return e.meta.ReadMetadata(key)
}

// WriteMetadata upserts the blob under key in the metadata namespace.
func (e *Engine) WriteMetadata(key string, value []byte) error {
	return e.meta.WriteMetadata(key, value)
}

// Close releases the device mapping and the metadata store handle.
func (e *Engine) Close() error {
	return errors.Join(e.dev.Close(), e.meta.Close())
}

var _ storage.Storage = (*Engine)(nil)
