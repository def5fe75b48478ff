// Package api implements the cfmgr REST API: a chi router exposing the
// row-store manager under /api/v1/d1 and the object-store manager under
// /api/v1/r2, with API-key, bearer-token and presigned-URL authentication.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/cfmgr/internal/logger"
)

// drainTimeout bounds the shutdown Start performs when its context ends.
// Callers wanting a longer grace period call Stop themselves first.
const drainTimeout = 5 * time.Second

// Server serves the router built by NewRouter on APIConfig.Port.
type Server struct {
	http *http.Server
	port int

	listener atomic.Pointer[net.TCPAddr]
	stopOnce sync.Once
	stopped  chan struct{}
	stopErr  error
}

// NewServer builds the router and the http.Server. Nothing listens until
// Start.
func NewServer(cfg APIConfig, deps Dependencies) (*Server, error) {
	cfg.ApplyDefaults()

	router, err := NewRouter(cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		port:    cfg.Port,
		stopped: make(chan struct{}),
	}, nil
}

// Start serves until ctx is cancelled or Stop is called, then drains
// in-flight requests. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.listener.Store(addr)
	}
	logger.Info("API server listening", "addr", ln.Addr().String())
	logger.Debug("API endpoints available",
		"d1", fmt.Sprintf("http://localhost:%d/api/v1/d1/databases", s.Port()),
		"r2", fmt.Sprintf("http://localhost:%d/api/v1/r2/buckets", s.Port()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-s.stopped:
			return nil
		case <-gctx.Done():
		}
		logger.Info("API server shutdown signal received")
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		return s.Stop(drainCtx)
	})
	return g.Wait()
}

// Stop stops accepting connections and waits for in-flight requests until
// ctx expires. Later calls return the first call's result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		defer close(s.stopped)
		if err := s.http.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
			return
		}
		logger.Info("API server stopped gracefully")
	})
	return s.stopErr
}

// Port returns the bound port once listening, else the configured one.
func (s *Server) Port() int {
	if addr := s.listener.Load(); addr != nil {
		return addr.Port
	}
	return s.port
}
