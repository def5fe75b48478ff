package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/metrics"
)

// ObjectStoreMetrics is the Prometheus implementation of objectstore.Metrics.
type ObjectStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	activeUploads     prometheus.Gauge
}

// NewObjectStoreMetrics creates the object-store recorder on the active
// registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewObjectStoreMetrics() *ObjectStoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &ObjectStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfmgr_objectstore_operations_total",
				Help: "Total number of object-store operations by operation, bucket and status",
			},
			[]string{"operation", "bucket", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cfmgr_objectstore_operation_duration_milliseconds",
				Help:    "Duration of object-store operations in milliseconds",
				Buckets: latencyBuckets,
			},
			[]string{"operation", "bucket"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfmgr_objectstore_bytes_transferred_total",
				Help: "Total bytes moved by object-store operations",
			},
			[]string{"operation", "direction"},
		),
		activeUploads: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cfmgr_objectstore_active_multipart_uploads",
				Help: "Current number of open multipart upload sessions",
			},
		),
	}
}

// ObserveOperation implements objectstore.Metrics.
func (m *ObjectStoreMetrics) ObserveOperation(operation, bucket string, code envelope.Code, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, bucket, status(string(code))).Inc()
	m.operationDuration.WithLabelValues(operation, bucket).Observe(duration.Seconds() * 1000)
}

// RecordBytes implements objectstore.Metrics.
func (m *ObjectStoreMetrics) RecordBytes(operation, direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(operation, direction).Add(float64(n))
}

// SetActiveMultipartUploads implements objectstore.Metrics.
func (m *ObjectStoreMetrics) SetActiveMultipartUploads(n int) {
	if m == nil {
		return
	}
	m.activeUploads.Set(float64(n))
}
