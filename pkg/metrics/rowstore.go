package metrics

import "github.com/marmos91/cfmgr/pkg/rowstore"

// NewRowStoreMetrics creates a Prometheus-backed rowstore.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus implementation is not linked in.
func NewRowStoreMetrics() rowstore.Metrics {
	if !IsEnabled() || newPrometheusRowStoreMetrics == nil {
		return nil
	}
	return newPrometheusRowStoreMetrics()
}

// newPrometheusRowStoreMetrics is set by pkg/metrics/prometheus. The
// indirection avoids an import cycle.
var newPrometheusRowStoreMetrics func() rowstore.Metrics

// RegisterRowStoreMetricsConstructor registers the Prometheus row-store
// metrics constructor.
func RegisterRowStoreMetricsConstructor(constructor func() rowstore.Metrics) {
	newPrometheusRowStoreMetrics = constructor
}
