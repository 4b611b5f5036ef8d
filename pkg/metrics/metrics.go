// Package metrics defines the storage instrumentation interface and a
// process-wide Prometheus registry gate. Implementations live in
// subpackages; callers that never call InitRegistry get no-op metrics and
// pay nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registryMu sync.Mutex
	registry   *prometheus.Registry
)

// InitRegistry enables metrics collection with a fresh Prometheus registry.
// Safe to call more than once; later calls keep the existing registry.
func InitRegistry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.Lock()
	defer registryMu.Unlock()

	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()

	return registry
}

// StorageMetrics records block storage engine operations.
//
// Implementations must be safe for concurrent use; the engine calls them
// from whatever goroutine performed the operation.
type StorageMetrics interface {
	// RecordRead records a read of the given size and its outcome.
	RecordRead(bytes int, err error)

	// RecordWrite records a program cycle of the given size and its outcome.
	RecordWrite(bytes int, err error)

	// RecordErase records an erase of the given size and its outcome.
	RecordErase(bytes int, err error)
}

// noopStorageMetrics discards everything.
type noopStorageMetrics struct{}

func (noopStorageMetrics) RecordRead(int, error)  {}
func (noopStorageMetrics) RecordWrite(int, error) {}
func (noopStorageMetrics) RecordErase(int, error) {}

// NewNoopStorageMetrics returns a StorageMetrics that discards everything.
func NewNoopStorageMetrics() StorageMetrics {
	return noopStorageMetrics{}
}
