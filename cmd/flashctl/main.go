// flashctl inspects and manipulates a rudelblinken flash image: partition
// layout, raw block erase, metadata entries and the overlay file listing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/robot-o/rudelblinken-go/internal/logger"
	"github.com/robot-o/rudelblinken-go/pkg/config"
	"github.com/robot-o/rudelblinken-go/pkg/lifecycle"
	"github.com/robot-o/rudelblinken-go/pkg/storage"
	"github.com/robot-o/rudelblinken-go/pkg/storage/flash"
	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML or TOML)")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")

	createImage := flag.Bool("create-image", false, "Create a blank flash image at the configured path")
	inspect := flag.Bool("inspect", false, "Print the partition table")
	eraseAll := flag.Bool("erase-all", false, "Erase the entire block store")
	list := flag.Bool("ls", false, "List files found by the overlay filesystem scan")
	getMeta := flag.String("get-meta", "", "Read a metadata entry by key")
	setMeta := flag.String("set-meta", "", "Write a metadata entry, formatted as key=value")

	flag.Parse()

	logger.SetLevel(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)

	if *createImage {
		size, err := imageSize(&cfg.Storage)
		if err != nil {
			logger.Error("Invalid partition layout: %v", err)
			os.Exit(1)
		}
		if err := flash.CreateImage(cfg.Storage.ImagePath, size); err != nil {
			logger.Error("Failed to create flash image: %v", err)
			os.Exit(1)
		}
		logger.Info("Created blank %d byte flash image at %s", size, cfg.Storage.ImagePath)
		return
	}

	if *inspect {
		table := config.BuildPartitionTable(&cfg.Storage)
		out, err := yaml.Marshal(table.Describe())
		if err != nil {
			logger.Error("Failed to render partition table: %v", err)
			os.Exit(1)
		}
		fmt.Print(string(out))
		return
	}

	ctx := context.Background()
	manager := lifecycle.NewManager(cfg)
	defer manager.Close()

	store, err := manager.Storage(ctx)
	if err != nil {
		logger.Error("Failed to open storage: %v", err)
		os.Exit(1)
	}

	switch {
	case *eraseAll:
		if err := store.Erase(0, storage.Capacity); err != nil {
			logger.Error("Erase failed: %v", err)
			os.Exit(1)
		}
		logger.Info("Erased %d blocks", storage.BlockCount)

	case *list:
		overlay, err := manager.Filesystem(ctx)
		if err != nil {
			logger.Error("Failed to scan filesystem: %v", err)
			os.Exit(1)
		}
		for _, file := range overlay.Files() {
			fmt.Printf("%8d  %#08x  %s\n", file.Length, file.Address, file.Name)
		}
		logger.Info("%d files, %d blocks used, %d blocks free",
			len(overlay.Files()), overlay.UsedBlocks(), overlay.FreeBlocks())

	case *getMeta != "":
		value, err := store.ReadMetadata(*getMeta)
		if err != nil {
			logger.Error("Failed to read metadata %q: %v", *getMeta, err)
			os.Exit(1)
		}
		fmt.Printf("%x\n", value)

	case *setMeta != "":
		key, value, ok := strings.Cut(*setMeta, "=")
		if !ok || key == "" {
			logger.Error("Invalid -set-meta argument %q, want key=value", *setMeta)
			os.Exit(1)
		}
		if err := store.WriteMetadata(key, []byte(value)); err != nil {
			logger.Error("Failed to write metadata %q: %v", key, err)
			os.Exit(1)
		}
		logger.Info("Wrote %d bytes under %q", len(value), key)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// imageSize computes how big the flash image must be to fit every
// configured partition. Partition ends are summed in 64-bit arithmetic:
// offsets and sizes are 32-bit individually but their sum can exceed the
// 32-bit address space, which no flash image can represent.
func imageSize(cfg *config.StorageConfig) (uint32, error) {
	var size uint64
	for _, p := range cfg.Partitions {
		end := uint64(p.Offset) + uint64(p.Size)
		if end > uint64(^uint32(0)) {
			return 0, fmt.Errorf("partition %q ends at %d, beyond the 32-bit address space", p.Label, end)
		}
		if end > size {
			size = end
		}
	}
	return uint32(size), nil
}
