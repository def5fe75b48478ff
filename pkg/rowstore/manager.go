// Package rowstore implements the row-store manager: safe, observable
// access to one or more named SQL databases.
//
// The manager gates statement kinds (Query accepts only reads, Execute
// rejects SELECT), binds all caller values through the backend bind
// primitive, runs batches atomically and layers table administration and
// import/export on top of those three primitives. Every operation returns
// an envelope.Result; caller misuse is reported as a Go error.
package rowstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/internal/telemetry"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Metrics records manager operation outcomes. A nil Metrics is valid and
// records nothing.
type Metrics interface {
	ObserveOperation(operation, database string, code envelope.Code, duration time.Duration)
}

// Manager multiplexes operations over named Database instances. The
// registry is fixed at construction and safe for concurrent use.
type Manager struct {
	databases map[string]Database
	names     []string
	metrics   Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// New creates a manager over databases. The map is copied.
func New(databases map[string]Database, opts ...Option) *Manager {
	m := &Manager{databases: make(map[string]Database, len(databases))}
	for name, db := range databases {
		m.databases[name] = db
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetInstance returns the database registered under name.
func (m *Manager) GetInstance(name string) (Database, bool) {
	db, ok := m.databases[name]
	return db, ok
}

// ListInstances returns the registered database names in sorted order.
func (m *Manager) ListInstances() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// HealthCheck pings every database that supports it and returns the
// failures keyed by database name.
func (m *Manager) HealthCheck(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, name := range m.names {
		p, ok := m.databases[name].(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// Close closes every database that implements io.Closer.
func (m *Manager) Close() error {
	var first error
	for _, name := range m.names {
		if c, ok := m.databases[name].(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = fmt.Errorf("close database %q: %w", name, err)
			}
		}
	}
	return first
}

func (m *Manager) lookup(name string) (Database, error) {
	db, ok := m.databases[name]
	if !ok {
		return nil, fmt.Errorf("%w: database %q", envelope.ErrInstanceNotFound, name)
	}
	return db, nil
}

// begin starts the span for op and returns the function that ends it and
// records the outcome. code is empty on success.
func (m *Manager) begin(ctx context.Context, op, database string) (context.Context, func(envelope.Code)) {
	start := time.Now()
	ctx, span := telemetry.StartRowStoreSpan(ctx, op, database)

	return ctx, func(code envelope.Code) {
		telemetry.EndWithCode(span, string(code))

		d := time.Since(start)
		if m.metrics != nil {
			m.metrics.ObserveOperation(op, database, code, d)
		}
		logger.DebugCtx(ctx, "rowstore operation",
			logger.KeyOperation, op,
			logger.KeyDatabase, database,
			logger.KeyCode, string(code),
			logger.KeyDurationMs, float64(d.Microseconds())/1000.0)
	}
}
