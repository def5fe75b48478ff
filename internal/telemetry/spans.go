package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. The db.* keys follow the OpenTelemetry database
// client conventions.
const (
	AttrOperation = "cfmgr.operation"
	AttrErrorCode = "cfmgr.error_code"
	AttrDBName    = "db.name"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
)

// Manager spans are named "<component>.<Operation>".
const (
	rowStoreComponent    = "rowstore"
	objectStoreComponent = "objectstore"
)

func DBName(name string) attribute.KeyValue    { return attribute.String(AttrDBName, name) }
func Bucket(name string) attribute.KeyValue    { return attribute.String(AttrBucket, name) }
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }
func ErrorCode(code string) attribute.KeyValue { return attribute.String(AttrErrorCode, code) }
func operation(name string) attribute.KeyValue { return attribute.String(AttrOperation, name) }

// StartRowStoreSpan opens a span for one RowStoreManager call on database.
func StartRowStoreSpan(ctx context.Context, op, database string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startManagerSpan(ctx, rowStoreComponent, op, append(attrs, DBName(database)))
}

// StartObjectStoreSpan opens a span for one ObjectStoreManager call on bucket.
func StartObjectStoreSpan(ctx context.Context, op, bucket string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startManagerSpan(ctx, objectStoreComponent, op, append(attrs, Bucket(bucket)))
}

func startManagerSpan(ctx context.Context, component, op string, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, component+"."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(attrs, operation(op))...),
	)
}

// EndWithCode ends span. A non-empty envelope error code marks it failed.
func EndWithCode(span trace.Span, code string) {
	if code != "" {
		span.SetAttributes(ErrorCode(code))
		span.SetStatus(codes.Error, code)
	}
	span.End()
}
