// Package prometheus implements the metrics recorders on the Prometheus
// client. Importing it registers the constructors with pkg/metrics.
package prometheus

import (
	"github.com/marmos91/cfmgr/pkg/metrics"
	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

func init() {
	metrics.RegisterRowStoreMetricsConstructor(func() rowstore.Metrics { return NewRowStoreMetrics() })
	metrics.RegisterObjectStoreMetricsConstructor(func() objectstore.Metrics { return NewObjectStoreMetrics() })
	metrics.RegisterHTTPMetricsConstructor(func() metrics.HTTPMetrics { return NewHTTPMetrics() })
}

// latencyBuckets are shared by the operation duration histograms, in
// milliseconds.
var latencyBuckets = []float64{
	1,    // 1ms - cached metadata lookups
	5,    // 5ms
	10,   // 10ms - small queries
	50,   // 50ms
	100,  // 100ms
	500,  // 500ms - large objects
	1000, // 1s
	5000, // 5s - imports and multipart completion
}

func status(code string) string {
	if code == "" {
		return "success"
	}
	return code
}
