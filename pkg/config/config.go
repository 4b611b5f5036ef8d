// Package config loads and validates the storage stack configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (RUDELBLINKEN_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Each metadata backend defines its own configuration shape; the Config
// struct carries type-specific sections as raw maps and only the section
// matching the selected type is decoded, by the factories in factories.go.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all configurable aspects of the storage stack.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Storage configures the flash image, the partition table and which
	// partition the block store lives in
	Storage StorageConfig `mapstructure:"storage"`

	// Metadata specifies the metadata store type and type-specific
	// configuration
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Metrics toggles Prometheus instrumentation
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// StorageConfig configures the flash device and partition layout.
type StorageConfig struct {
	// Device selects the hardware backend
	// Valid values: file (memory-mapped flash image), memory (volatile,
	// for development and tests)
	Device string `mapstructure:"device" validate:"required,oneof=file memory"`

	// ImagePath is the flash image file; required for the file device
	ImagePath string `mapstructure:"image_path" validate:"required_if=Device file"`

	// PartitionLabel names the partition holding the block store
	PartitionLabel string `mapstructure:"partition_label" validate:"required"`

	// Partitions is the partition table of the flash image
	Partitions []PartitionConfig `mapstructure:"partitions" validate:"min=1,dive"`
}

// PartitionConfig describes one entry of the partition table.
type PartitionConfig struct {
	// Label is the partition name
	Label string `mapstructure:"label" validate:"required"`

	// Offset is the byte offset of the partition inside the flash image
	Offset uint32 `mapstructure:"offset"`

	// Size is the partition size in bytes
	Size uint32 `mapstructure:"size" validate:"required"`

	// EraseSize is the erase granularity of the partition's flash
	EraseSize uint32 `mapstructure:"erase_size" validate:"required"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used. Only the
// corresponding type-specific section is decoded.
type MetadataConfig struct {
	// Type selects the backend
	// Valid values: badger (persistent), memory (volatile)
	Type string `mapstructure:"type" validate:"required,oneof=badger memory"`

	// Badger holds options for the badger backend (path, namespace)
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig toggles instrumentation.
type MetricsConfig struct {
	// Enabled turns on the Prometheus registry
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from the given file (optional), the
// RUDELBLINKEN_* environment and the defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("RUDELBLINKEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
