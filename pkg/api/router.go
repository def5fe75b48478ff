package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/marmos91/cfmgr/pkg/api/auth"
	"github.com/marmos91/cfmgr/pkg/api/handlers"
	apimw "github.com/marmos91/cfmgr/pkg/api/middleware"
	"github.com/marmos91/cfmgr/pkg/metrics"
	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/rowstore"
)

// Dependencies are the services the router exposes. A nil manager disables
// its route group.
type Dependencies struct {
	RowStore    *rowstore.Manager
	ObjectStore *objectstore.Manager
	Auth        AuthConfig
	Presign     PresignConfig
	Metrics     metrics.HTTPMetrics
	Version     string

	// Now overrides the clock used to check presigned URLs.
	Now func() time.Time
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes (under /api/v1):
//   - GET /health, GET /health/ready: unauthenticated probes
//   - /d1/...: row-store operations
//   - /r2/...: object-store operations
func NewRouter(cfg APIConfig, deps Dependencies) (http.Handler, error) {
	cfg.ApplyDefaults()
	deps.Auth.ApplyDefaults()
	deps.Presign.ApplyDefaults()

	authOpts := apimw.AuthOptions{
		APIKey:        auth.NewAPIKeyVerifier(deps.Auth.APIKey, deps.Auth.APIKeyHash),
		PresignSecret: deps.Presign.SecretKey,
		Now:           deps.Now,
	}
	if deps.Auth.JWTSecret != "" {
		jwtService, err := auth.NewJWTService(auth.JWTConfig{
			Secret:        deps.Auth.JWTSecret,
			Issuer:        deps.Auth.JWTIssuer,
			TokenDuration: deps.Auth.TokenDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("configure bearer tokens: %w", err)
		}
		authOpts.JWT = jwtService
	}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otelhttp.NewMiddleware("cfmgr.api"))
	r.Use(apimw.LogContext)
	r.Use(apimw.RequestLogger(deps.Metrics))
	r.Use(middleware.Recoverer)

	var databases, buckets handlers.HealthChecker
	if deps.RowStore != nil {
		databases = deps.RowStore
	}
	if deps.ObjectStore != nil {
		buckets = deps.ObjectStore
	}
	healthHandler := handlers.NewHealthHandler(databases, buckets, deps.Version)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Liveness)
		r.Get("/health/ready", healthHandler.Readiness)

		r.Group(func(r chi.Router) {
			r.Use(apimw.Authenticate(authOpts))

			if deps.RowStore != nil {
				d1 := handlers.NewRowStoreHandler(deps.RowStore)
				r.Route("/d1", func(r chi.Router) {
					r.Get("/databases", d1.ListDatabases)
					r.Route("/{db}", func(r chi.Router) {
						r.Post("/query", d1.Query)
						r.Post("/execute", d1.Execute)
						r.Post("/batch", d1.Batch)
						r.Get("/tables", d1.ListTables)
						r.Post("/tables", d1.CreateTable)
						r.Get("/tables/{table}", d1.GetTable)
						r.Get("/tables/{table}/indexes", d1.GetTableIndexes)
						r.Delete("/tables/{table}", d1.DeleteTable)
						r.Post("/export", d1.Export)
						r.Post("/import", d1.Import)
					})
				})
			}

			if deps.ObjectStore != nil {
				r2 := handlers.NewObjectStoreHandler(deps.ObjectStore, handlers.ObjectStoreOptions{
					MaxUploadSize: cfg.MaxUploadSize.Int64(),
					PresignSecret: deps.Presign.SecretKey,
					PresignExpiry: deps.Presign.DefaultExpiry,
				})
				r.Route("/r2", func(r chi.Router) {
					r.Get("/buckets", r2.ListBuckets)
					r.Get("/multipart", r2.ListMultipartUploads)
					r.Route("/{bucket}", func(r chi.Router) {
						r.Get("/objects", r2.ListObjects)
						r.Post("/objects/*", r2.Upload)
						r.Put("/objects/*", r2.Upload)
						r.Get("/objects/*", r2.Download)
						r.Head("/objects/*", r2.Head)
						r.Delete("/objects/*", r2.Delete)
						r.Get("/metadata/*", r2.Metadata)
						r.Post("/copy", r2.Copy)
						r.Post("/presign", r2.Presign)
						r.Post("/multipart", r2.CreateMultipart)
						r.Put("/multipart/{uploadId}/{part}", r2.UploadPart)
						r.Post("/multipart/{uploadId}/complete", r2.CompleteMultipart)
						r.Delete("/multipart/{uploadId}", r2.AbortMultipart)
					})
				})
			}
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusTemporaryRedirect)
	})

	return r, nil
}
