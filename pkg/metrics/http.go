package metrics

import "time"

// HTTPMetrics records API requests.
type HTTPMetrics interface {
	// ObserveRequest records one request. route is the matched route
	// pattern, not the raw path.
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics, or nil when
// metrics are disabled.
func NewHTTPMetrics() HTTPMetrics {
	if !IsEnabled() || newPrometheusHTTPMetrics == nil {
		return nil
	}
	return newPrometheusHTTPMetrics()
}

var newPrometheusHTTPMetrics func() HTTPMetrics

// RegisterHTTPMetricsConstructor registers the Prometheus HTTP metrics
// constructor.
func RegisterHTTPMetricsConstructor(constructor func() HTTPMetrics) {
	newPrometheusHTTPMetrics = constructor
}
