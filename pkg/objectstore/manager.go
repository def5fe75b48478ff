// Package objectstore implements the object-store manager: object CRUD,
// listing, copy, multipart upload orchestration and presigned URLs over
// one or more named buckets.
//
// Buckets are injected as Bucket implementations (see the memory, badger
// and s3 subpackages). Every operation returns an envelope.Result; an
// unknown bucket or a missing required argument is a Go error.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/cfmgr/internal/bytesize"
	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/internal/telemetry"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

// Transfer directions reported to Metrics.RecordBytes.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics records manager activity. A nil Metrics is valid and records
// nothing.
type Metrics interface {
	ObserveOperation(operation, bucket string, code envelope.Code, duration time.Duration)
	RecordBytes(operation, direction string, n int64)
	SetActiveMultipartUploads(n int)
}

// Manager multiplexes operations over named buckets and owns the table of
// in-progress multipart uploads. It is safe for concurrent use.
type Manager struct {
	buckets map[string]Bucket
	names   []string
	metrics Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithClock overrides the clock used for timestamps and presign expiry.
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) { mgr.now = now }
}

// New creates a manager over buckets. The map is copied.
func New(buckets map[string]Bucket, opts ...Option) *Manager {
	m := &Manager{
		buckets:  make(map[string]Bucket, len(buckets)),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for name, b := range buckets {
		m.buckets[name] = b
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetBucket returns the bucket registered under name.
func (m *Manager) GetBucket(name string) (Bucket, bool) {
	b, ok := m.buckets[name]
	return b, ok
}

// ListBuckets returns the registered bucket names in sorted order.
func (m *Manager) ListBuckets() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// HealthCheck checks every bucket that supports it and returns the
// failures keyed by bucket name.
func (m *Manager) HealthCheck(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, name := range m.names {
		hc, ok := m.buckets[name].(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// Close closes every bucket that implements io.Closer.
func (m *Manager) Close() error {
	var first error
	for _, name := range m.names {
		if c, ok := m.buckets[name].(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = fmt.Errorf("close bucket %q: %w", name, err)
			}
		}
	}
	return first
}

// FormatSize renders a byte count with binary units and one decimal place,
// e.g. "1.5 KB".
func FormatSize(n int64) string {
	return bytesize.Human(n)
}

func (m *Manager) lookup(name string) (Bucket, error) {
	b, ok := m.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q", envelope.ErrInstanceNotFound, name)
	}
	return b, nil
}

// begin starts the span for op and returns the function that ends it and
// records the outcome. code is empty on success.
func (m *Manager) begin(ctx context.Context, op, bucket, key string) (context.Context, func(envelope.Code)) {
	start := time.Now()
	ctx, span := telemetry.StartObjectStoreSpan(ctx, op, bucket, telemetry.StorageKey(key))

	return ctx, func(code envelope.Code) {
		telemetry.EndWithCode(span, string(code))

		d := time.Since(start)
		if m.metrics != nil {
			m.metrics.ObserveOperation(op, bucket, code, d)
		}
		logger.DebugCtx(ctx, "objectstore operation",
			logger.KeyOperation, op,
			logger.KeyBucket, bucket,
			logger.KeyKey, key,
			logger.KeyCode, string(code),
			logger.KeyDurationMs, float64(d.Microseconds())/1000.0)
	}
}

func (m *Manager) recordBytes(op, direction string, n int64) {
	if m.metrics != nil && n > 0 {
		m.metrics.RecordBytes(op, direction, n)
	}
}

// timestamp formats t as UTC RFC 3339 with a Z suffix.
func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
