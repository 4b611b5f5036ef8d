// Package prometheus provides the Prometheus-backed implementation of the
// metrics interfaces.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robot-o/rudelblinken-go/pkg/metrics"
)

// storageMetrics is the Prometheus implementation of metrics.StorageMetrics.
type storageMetrics struct {
	opsTotal         *prometheus.CounterVec
	bytesTransferred *prometheus.CounterVec
	operationSize    *prometheus.HistogramVec
}

// The collectors carry fixed names and live in the process-global
// registry, so they are built exactly once; later calls reuse them.
// Rebuilding the storage stack (after a failed construction, or after a
// close) must not attempt a second registration.
var (
	storageOnce     sync.Once
	storageInstance metrics.StorageMetrics
)

// NewStorageMetrics returns the Prometheus-backed StorageMetrics instance
// for this process, creating it on first use.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewStorageMetrics() metrics.StorageMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStorageMetrics()
	}

	storageOnce.Do(func() {
		storageInstance = newStorageMetrics(metrics.GetRegistry())
	})
	return storageInstance
}

// newStorageMetrics registers the flash collectors with the registry.
func newStorageMetrics(reg *prometheus.Registry) metrics.StorageMetrics {
	return &storageMetrics{
		opsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rudelblinken_flash_operations_total",
				Help: "Total number of flash operations by type and status",
			},
			[]string{"operation", "status"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rudelblinken_flash_bytes_total",
				Help: "Total bytes moved through the flash layer by operation",
			},
			[]string{"operation"},
		),
		operationSize: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "rudelblinken_flash_operation_size_bytes",
				Help: "Size distribution of flash operations in bytes",
				Buckets: []float64{
					64,     // sub-header writes
					512,    // small payloads
					4096,   // one block
					32768,  // 8 blocks
					262144, // quarter partition
				},
			},
			[]string{"operation"},
		),
	}
}

func (m *storageMetrics) record(op string, bytes int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.opsTotal.WithLabelValues(op, status).Inc()
	if err == nil {
		m.bytesTransferred.WithLabelValues(op).Add(float64(bytes))
		m.operationSize.WithLabelValues(op).Observe(float64(bytes))
	}
}

func (m *storageMetrics) RecordRead(bytes int, err error)  { m.record("read", bytes, err) }
func (m *storageMetrics) RecordWrite(bytes int, err error) { m.record("write", bytes, err) }
func (m *storageMetrics) RecordErase(bytes int, err error) { m.record("erase", bytes, err) }
