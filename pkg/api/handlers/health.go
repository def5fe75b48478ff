package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// HealthChecker is implemented by both managers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

var (
	_ HealthChecker = (*rowstore.Manager)(nil)
	_ HealthChecker = (*objectstore.Manager)(nil)
)

// HealthHandler handles health check endpoints. They are unauthenticated.
type HealthHandler struct {
	databases HealthChecker
	buckets   HealthChecker
	version   string
}

// NewHealthHandler creates a new health handler. Either checker may be nil.
func NewHealthHandler(databases, buckets HealthChecker, version string) *HealthHandler {
	return &HealthHandler{databases: databases, buckets: buckets, version: version}
}

// HealthData is the payload of the health endpoints.
type HealthData struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp"`
	Databases map[string]string `json:"databases,omitempty"`
	Buckets   map[string]string `json:"buckets,omitempty"`
}

func (h *HealthHandler) base(status string) HealthData {
	return HealthData{
		Status:    status,
		Service:   "cfmgr",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Liveness handles GET /health. It succeeds as long as the process serves
// HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.base("healthy")})
}

// Readiness handles GET /health/ready. It pings every database and bucket
// and returns 503 when any of them fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	data := h.base("healthy")
	healthy := true
	check := func(c HealthChecker) map[string]string {
		if c == nil {
			return nil
		}
		failures := c.HealthCheck(ctx)
		if len(failures) == 0 {
			return nil
		}
		healthy = false
		out := make(map[string]string, len(failures))
		for name, err := range failures {
			out[name] = err.Error()
		}
		return out
	}
	data.Databases = check(h.databases)
	data.Buckets = check(h.buckets)

	status := http.StatusOK
	if !healthy {
		data.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"success": healthy, "data": data})
}
