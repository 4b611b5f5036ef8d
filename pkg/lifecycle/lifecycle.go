// Package lifecycle assembles the storage stack exactly once per process
// and hands out the shared handle.
//
// First access resolves the partition, maps the region, builds the block
// storage engine, opens the metadata namespace and scans the overlay
// filesystem. Later accesses reuse the built instance. A failed
// construction leaves no partial state behind: everything opened before
// the failure is closed again and the next access is a clean retry.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/robot-o/rudelblinken-go/internal/logger"
	"github.com/robot-o/rudelblinken-go/pkg/config"
	"github.com/robot-o/rudelblinken-go/pkg/fs"
	"github.com/robot-o/rudelblinken-go/pkg/metrics"
	metricsProm "github.com/robot-o/rudelblinken-go/pkg/metrics/prometheus"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/robot-o/rudelblinken-go/pkg/storage/flash"
	"golang.org/x/sync/singleflight"
)

// Manager owns the process-wide Storage and Filesystem instances.
//
// Concurrent first callers are collapsed through a singleflight group: a
// single winner performs the construction (so the partition is never
// mapped twice) while the others wait for and share its result.
type Manager struct {
	cfg *config.Config

	group singleflight.Group

	mu      sync.Mutex
	engine  *flash.Engine
	overlay *fs.Filesystem
}

// NewManager creates a manager for the given configuration. Nothing is
// opened until the first access.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// Storage returns the shared Storage instance, constructing the whole
// stack on first use.
func (m *Manager) Storage(ctx context.Context) (storage.Storage, error) {
	if err := m.ensure(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine, nil
}

// Filesystem returns the shared overlay Filesystem instance, constructing
// the whole stack on first use.
func (m *Manager) Filesystem(ctx context.Context) (*fs.Filesystem, error) {
	if err := m.ensure(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlay, nil
}

// Close tears down the stack. Safe to call without a prior successful
// construction.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine == nil {
		return nil
	}
	err := m.engine.Close()
	m.engine = nil
	m.overlay = nil
	return err
}

// ensure builds the stack if it does not exist yet.
func (m *Manager) ensure(ctx context.Context) error {
	m.mu.Lock()
	built := m.engine != nil
	m.mu.Unlock()
	if built {
		return nil
	}

	_, err, _ := m.group.Do("storage", func() (any, error) {
		// A loser of an earlier race may arrive here after the winner
		// finished; nothing to do then.
		m.mu.Lock()
		built := m.engine != nil
		m.mu.Unlock()
		if built {
			return nil, nil
		}
		return nil, m.build(ctx)
	})
	return err
}

// build performs the one-time construction: resolve -> map -> engine ->
// metadata -> overlay scan. On any failure every already-opened resource
// is closed so no partial state survives.
func (m *Manager) build(ctx context.Context) error {
	// Metrics first: the registry is process-global and the collector set
	// is reused across rebuilds, so this step cannot fail and must not be
	// repeated per attempt with fresh collectors.
	var storageMetrics metrics.StorageMetrics
	if m.cfg.Metrics.Enabled {
		metrics.InitRegistry()
		storageMetrics = metricsProm.NewStorageMetrics()
	}

	table := config.BuildPartitionTable(&m.cfg.Storage)

	desc, err := table.Find(m.cfg.Storage.PartitionLabel)
	if err != nil {
		return fmt.Errorf("failed to resolve storage partition: %w", err)
	}
	logger.Info("Resolved partition %q: offset=%d size=%d erase_size=%d",
		desc.Label, desc.Offset, desc.Size, desc.EraseSize)

	dev, err := config.CreateDevice(ctx, &m.cfg.Storage, desc)
	if err != nil {
		return fmt.Errorf("failed to open flash device: %w", err)
	}

	meta, err := config.CreateMetadataStore(ctx, &m.cfg.Metadata)
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("failed to open metadata store: %w", err)
	}

	engine, err := flash.NewEngine(dev, meta, storageMetrics)
	if err != nil {
		_ = dev.Close()
		_ = meta.Close()
		return fmt.Errorf("failed to build storage engine: %w", err)
	}

	overlay, err := fs.New(engine)
	if err != nil {
		_ = engine.Close()
		return fmt.Errorf("failed to scan overlay filesystem: %w", err)
	}
	logger.Info("Overlay filesystem scanned: %d files, %d/%d blocks used",
		len(overlay.Files()), overlay.UsedBlocks(), storage.BlockCount)

	m.mu.Lock()
	m.engine = engine
	m.overlay = overlay
	m.mu.Unlock()
	return nil
}
