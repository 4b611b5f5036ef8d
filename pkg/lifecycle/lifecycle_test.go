package lifecycle

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/robot-o/rudelblinken-go/pkg/config"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/robot-o/rudelblinken-go/pkg/storage/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Logging: config.LoggingConfig{Level: "ERROR"},
		Storage: config.StorageConfig{
			Device:         "memory",
			PartitionLabel: "storage",
			Partitions: []config.PartitionConfig{
				{Label: "storage", Offset: 0, Size: storage.Capacity, EraseSize: storage.BlockSize},
			},
		},
		Metadata: config.MetadataConfig{Type: "memory"},
	}
}

func TestFirstAccessBuildsOnce(t *testing.T) {
	manager := NewManager(memoryConfig())
	defer manager.Close()

	first, err := manager.Storage(context.Background())
	require.NoError(t, err)

	second, err := manager.Storage(context.Background())
	require.NoError(t, err)
	assert.Same(t, first.(*flash.Engine), second.(*flash.Engine))

	overlay, err := manager.Filesystem(context.Background())
	require.NoError(t, err)
	assert.Same(t, first.(*flash.Engine), overlay.Storage().(*flash.Engine))
}

// TestConcurrentFirstCallers verifies the construction race: every caller
// must end up with the identical Storage instance and the partition must
// not be mapped twice.
func TestConcurrentFirstCallers(t *testing.T) {
	manager := NewManager(memoryConfig())
	defer manager.Close()

	const callers = 16
	results := make([]storage.Storage, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			store, err := manager.Storage(context.Background())
			assert.NoError(t, err)
			results[i] = store
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, results[0].(*flash.Engine), results[i].(*flash.Engine))
	}
}

func TestUnknownPartitionLabel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.PartitionLabel = "missing"

	manager := NewManager(cfg)
	defer manager.Close()

	_, err := manager.Storage(context.Background())
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPartitionNotFound), "got %v", err)
}

func TestMisconfiguredPartitionIsFatal(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Partitions[0].EraseSize = storage.BlockSize * 2

	manager := NewManager(cfg)
	defer manager.Close()

	_, err := manager.Storage(context.Background())
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrPartitionMisconfigured), "got %v", err)
}

// TestFailedConstructionRetriesCleanly verifies that a failed first
// construction leaves no partial state: once the cause is fixed, the next
// access succeeds.
func TestFailedConstructionRetriesCleanly(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "flash.img")

	cfg := memoryConfig()
	cfg.Storage.Device = "file"
	cfg.Storage.ImagePath = imagePath

	manager := NewManager(cfg)
	defer manager.Close()

	// The image does not exist yet: mapping fails.
	_, err := manager.Storage(context.Background())
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrMappingFailed), "got %v", err)

	// Fix the cause; the retry must start from a clean slate.
	require.NoError(t, flash.CreateImage(imagePath, storage.Capacity))

	store, err := manager.Storage(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, store)
}

// TestFailedConstructionWithMetricsRetriesCleanly is the instrumented
// variant of the retry: the metrics step runs on every attempt against the
// process-global registry, so the retry must reuse the collectors built by
// the failed attempt instead of panicking on a second registration.
func TestFailedConstructionWithMetricsRetriesCleanly(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "flash.img")

	cfg := memoryConfig()
	cfg.Storage.Device = "file"
	cfg.Storage.ImagePath = imagePath
	cfg.Metrics.Enabled = true

	manager := NewManager(cfg)
	defer manager.Close()

	_, err := manager.Storage(context.Background())
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrMappingFailed), "got %v", err)

	require.NoError(t, flash.CreateImage(imagePath, storage.Capacity))

	var store storage.Storage
	require.NotPanics(t, func() {
		store, err = manager.Storage(context.Background())
	})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestCloseWithoutBuild(t *testing.T) {
	manager := NewManager(memoryConfig())
	assert.NoError(t, manager.Close())
}
