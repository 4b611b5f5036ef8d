package config

import (
	"context"
	"testing"

	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/robot-o/rudelblinken-go/pkg/storage/flash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorageConfig() *StorageConfig {
	return &StorageConfig{
		Device:         "memory",
		PartitionLabel: "storage",
		Partitions: []PartitionConfig{
			{Label: "storage", Offset: 0, Size: storage.Capacity, EraseSize: storage.BlockSize},
		},
	}
}

func TestBuildPartitionTable(t *testing.T) {
	table := BuildPartitionTable(testStorageConfig())

	desc, err := table.Find("storage")
	require.NoError(t, err)
	assert.Equal(t, storage.Capacity, desc.Size)
}

func TestCreateMemoryDevice(t *testing.T) {
	cfg := testStorageConfig()
	table := BuildPartitionTable(cfg)
	desc, err := table.Find("storage")
	require.NoError(t, err)

	dev, err := CreateDevice(context.Background(), cfg, desc)
	require.NoError(t, err)
	defer dev.Close()

	assert.IsType(t, &flash.MemoryDevice{}, dev)
	assert.Len(t, dev.Region(), int(storage.Capacity))
}

func TestCreateDeviceUnknownType(t *testing.T) {
	cfg := testStorageConfig()
	cfg.Device = "tape"

	_, err := CreateDevice(context.Background(), cfg, BuildPartitionTable(testStorageConfig()).Describe()[0])
	require.Error(t, err)
}

func TestCreateMetadataStoreMemory(t *testing.T) {
	store, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "memory"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WriteMetadata("k", []byte("v")))
	got, err := store.ReadMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestCreateMetadataStoreBadger(t *testing.T) {
	store, err := CreateMetadataStore(context.Background(), &MetadataConfig{
		Type:   "badger",
		Badger: map[string]any{"path": t.TempDir()},
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WriteMetadata("k", []byte("v")))
}

func TestCreateMetadataStoreBadgerRequiresPath(t *testing.T) {
	_, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "badger"})
	require.Error(t, err)
}
