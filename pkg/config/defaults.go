package config

import (
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/spf13/viper"
)

// applyDefaults registers the default configuration: a single "storage"
// partition spanning the whole compiled capacity at offset zero, matching
// the stock partition layout of the device.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")

	v.SetDefault("storage.device", "file")
	v.SetDefault("storage.image_path", "flash.img")
	v.SetDefault("storage.partition_label", "storage")
	v.SetDefault("storage.partitions", []map[string]any{
		{
			"label":      "storage",
			"offset":     0,
			"size":       storage.Capacity,
			"erase_size": storage.BlockSize,
		},
	})

	v.SetDefault("metadata.type", "badger")
	v.SetDefault("metadata.badger", map[string]any{
		"path": "metadata",
	})

	v.SetDefault("metrics.enabled", false)
}
