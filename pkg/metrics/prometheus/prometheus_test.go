package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/envelope"
	"github.com/marmos91/cfmgr/pkg/metrics"
)

func TestDisabledReturnsNil(t *testing.T) {
	metrics.Disable()

	assert.Nil(t, NewRowStoreMetrics())
	assert.Nil(t, NewObjectStoreMetrics())
	assert.Nil(t, NewHTTPMetrics())
	assert.Nil(t, metrics.NewRowStoreMetrics())
	assert.Nil(t, metrics.NewObjectStoreMetrics())
	assert.Nil(t, metrics.NewHTTPMetrics())

	// Nil recorders are safe to call.
	var rows *RowStoreMetrics
	rows.ObserveOperation("Query", "main", "", time.Millisecond)
	var objects *ObjectStoreMetrics
	objects.RecordBytes("Upload", "in", 10)
	objects.SetActiveMultipartUploads(1)
}

func TestRowStoreMetrics(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Disable)

	m := metrics.NewRowStoreMetrics()
	require.NotNil(t, m)
	m.ObserveOperation("Query", "main", "", 2*time.Millisecond)
	m.ObserveOperation("Query", "main", envelope.CodeInvalidSQL, time.Millisecond)
	m.ObserveOperation("Query", "main", envelope.CodeInvalidSQL, time.Millisecond)

	impl := m.(*RowStoreMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operationsTotal.WithLabelValues("Query", "main", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(impl.operationsTotal.WithLabelValues("Query", "main", "INVALID_SQL")))
	assert.Equal(t, 1, testutil.CollectAndCount(impl.operationDuration))
}

func TestObjectStoreMetrics(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Disable)

	m := metrics.NewObjectStoreMetrics()
	require.NotNil(t, m)
	m.ObserveOperation("Upload", "assets", "", time.Millisecond)
	m.RecordBytes("Upload", "in", 100)
	m.RecordBytes("Upload", "in", 28)
	m.RecordBytes("Upload", "in", 0)
	m.SetActiveMultipartUploads(3)

	impl := m.(*ObjectStoreMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operationsTotal.WithLabelValues("Upload", "assets", "success")))
	assert.Equal(t, 128.0, testutil.ToFloat64(impl.bytesTransferred.WithLabelValues("Upload", "in")))
	assert.Equal(t, 3.0, testutil.ToFloat64(impl.activeUploads))
}

func TestHandlerExposesRegistry(t *testing.T) {
	metrics.InitRegistry()
	t.Cleanup(metrics.Disable)

	m := metrics.NewHTTPMetrics()
	require.NotNil(t, m)
	m.ObserveRequest(http.MethodGet, "/api/v1/d1", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cfmgr_http_requests_total{method="GET",route="/api/v1/d1",status="200"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestHandlerDisabled(t *testing.T) {
	metrics.Disable()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
