package metrics

import "github.com/marmos91/cfmgr/pkg/objectstore"

// NewObjectStoreMetrics creates a Prometheus-backed objectstore.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus implementation is not linked in.
func NewObjectStoreMetrics() objectstore.Metrics {
	if !IsEnabled() || newPrometheusObjectStoreMetrics == nil {
		return nil
	}
	return newPrometheusObjectStoreMetrics()
}

var newPrometheusObjectStoreMetrics func() objectstore.Metrics

// RegisterObjectStoreMetricsConstructor registers the Prometheus object-store
// metrics constructor.
func RegisterObjectStoreMetricsConstructor(constructor func() objectstore.Metrics) {
	newPrometheusObjectStoreMetrics = constructor
}
