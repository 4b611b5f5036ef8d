package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/robot-o/rudelblinken-go/internal/logger"
	"github.com/robot-o/rudelblinken-go/pkg/metadata"
	metadataBadger "github.com/robot-o/rudelblinken-go/pkg/metadata/badger"
	metadataMemory "github.com/robot-o/rudelblinken-go/pkg/metadata/memory"
	"github.com/robot-o/rudelblinken-go/pkg/storage/flash"
	"github.com/robot-o/rudelblinken-go/pkg/storage/partition"
)

// BuildPartitionTable turns the configured partition entries into the
// resolver's table. Panics if the table is empty; validation guarantees at
// least one entry, so an empty table means configuration was bypassed.
func BuildPartitionTable(cfg *StorageConfig) *partition.Table {
	descriptors := make([]partition.Descriptor, 0, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		descriptors = append(descriptors, partition.Descriptor{
			Label:     p.Label,
			Offset:    p.Offset,
			Size:      p.Size,
			EraseSize: p.EraseSize,
		})
	}
	return partition.NewTable(descriptors)
}

// CreateDevice creates a flash device for the resolved partition based on
// configuration.
//
// Supported types:
//   - "file": memory-mapped flash image (flash.FileDevice)
//   - "memory": volatile in-memory device, for development and tests
func CreateDevice(ctx context.Context, cfg *StorageConfig, desc partition.Descriptor) (flash.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Device {
	case "file":
		logger.Debug("Opening flash image %s, partition %q", cfg.ImagePath, desc.Label)
		return flash.OpenFileDevice(cfg.ImagePath, desc)
	case "memory":
		logger.Debug("Using volatile in-memory flash device for partition %q", desc.Label)
		return flash.NewMemoryDevice(desc.Size), nil
	default:
		return nil, fmt.Errorf("unknown storage device type: %q", cfg.Device)
	}
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "badger": persistent BadgerDB backend (pkg/metadata/badger)
//   - "memory": volatile map backend (pkg/metadata/memory)
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	case "memory":
		return metadataMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

// createBadgerMetadataStore decodes the badger section and opens the store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	type BadgerStoreConfig struct {
		Path      string `mapstructure:"path"`
		Namespace string `mapstructure:"namespace"`
	}

	var storeCfg BadgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("badger metadata store: path is required")
	}

	store, err := metadataBadger.NewStore(ctx, metadataBadger.Config{
		DBPath:    storeCfg.Path,
		Namespace: storeCfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	return store, nil
}
