package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// withRecorder routes manager spans into an in-memory recorder.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	tr := tp.Tracer("test")
	prev := active.Swap(&tr)
	t.Cleanup(func() {
		active.Store(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Endpoint: "localhost:4317"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.False(t, IsEnabled())

	// Spans still work, they are just not recorded.
	ctx, span := StartRowStoreSpan(context.Background(), "Query", "main")
	EndWithCode(span, "")
	assert.False(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
}

func TestIDsWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, SpanID(context.Background()))
}

func TestIDsWithSpan(t *testing.T) {
	withRecorder(t)

	ctx, span := StartObjectStoreSpan(context.Background(), "Head", "assets")
	defer span.End()

	assert.Len(t, TraceID(ctx), 32)
	assert.Len(t, SpanID(ctx), 16)
}

func TestStartRowStoreSpan(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartRowStoreSpan(context.Background(), "Query", "main")
	EndWithCode(span, "")

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "rowstore.Query", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), DBName("main"))
	assert.Contains(t, spans[0].Attributes(), attribute.String(AttrOperation, "Query"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestStartObjectStoreSpanWithFailure(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartObjectStoreSpan(context.Background(), "Download", "assets", StorageKey("a.txt"))
	EndWithCode(span, "OBJECT_NOT_FOUND")

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "objectstore.Download", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), Bucket("assets"))
	assert.Contains(t, spans[0].Attributes(), StorageKey("a.txt"))
	assert.Contains(t, spans[0].Attributes(), ErrorCode("OBJECT_NOT_FOUND"))
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

func TestInitProfiling(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, stop())
	assert.False(t, IsProfilingEnabled())

	_, err = InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"cpu", "heap"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"heap"`)
}

func TestValidProfileType(t *testing.T) {
	for _, pt := range DefaultProfileTypes {
		assert.True(t, ValidProfileType(pt), pt)
	}
	assert.True(t, ValidProfileType("block_duration"))
	assert.False(t, ValidProfileType("heap"))
}
