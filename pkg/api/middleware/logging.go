package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/internal/telemetry"
	"github.com/marmos91/cfmgr/pkg/metrics"
)

// LogContext attaches a logger.LogContext carrying the request ID and the
// client IP. It must run after chi's RequestID and RealIP middleware.
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}

		lc := logger.NewLogContext(chimw.GetReqID(r.Context()), clientIP)
		if traceID := telemetry.TraceID(r.Context()); traceID != "" {
			lc = lc.WithTrace(traceID, telemetry.SpanID(r.Context()))
		}
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), lc)))
	})
}

// RequestLogger logs each request at DEBUG on start and INFO on completion
// and reports it to m, which may be nil.
func RequestLogger(m metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.DebugCtx(r.Context(), "API request started",
				logger.KeyMethod, r.Method,
				logger.KeyPath, r.URL.Path,
			)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			if m != nil {
				m.ObserveRequest(r.Method, route, status, duration)
			}

			log := logger.InfoCtx
			if status >= http.StatusInternalServerError {
				log = logger.WarnCtx
			}
			log(r.Context(), "API request completed",
				logger.KeyMethod, r.Method,
				logger.KeyPath, r.URL.Path,
				"route", route,
				logger.KeyStatus, status,
				"bytes", ww.BytesWritten(),
				logger.KeyDurationMs, float64(duration.Microseconds())/1000.0,
			)
		})
	}
}
