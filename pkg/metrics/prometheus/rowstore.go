package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/metrics"
)

// RowStoreMetrics is the Prometheus implementation of rowstore.Metrics.
type RowStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewRowStoreMetrics creates the row-store recorder on the active registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRowStoreMetrics() *RowStoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &RowStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cfmgr_rowstore_operations_total",
				Help: "Total number of row-store operations by operation, database and status",
			},
			[]string{"operation", "database", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cfmgr_rowstore_operation_duration_milliseconds",
				Help:    "Duration of row-store operations in milliseconds",
				Buckets: latencyBuckets,
			},
			[]string{"operation", "database"},
		),
	}
}

// ObserveOperation implements rowstore.Metrics.
func (m *RowStoreMetrics) ObserveOperation(operation, database string, code envelope.Code, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, database, status(string(code))).Inc()
	m.operationDuration.WithLabelValues(operation, database).Observe(duration.Seconds() * 1000)
}
