package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput sends uncolored logs to a buffer and restores the previous
// destination and level on cleanup.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	prev := dest
	dest = destination{w: buf, json: prev.json}
	rebuild()
	mu.Unlock()
	prevLevel := minLevel.Level()

	t.Cleanup(func() {
		mu.Lock()
		dest = prev
		rebuild()
		mu.Unlock()
		minLevel.Set(prevLevel)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		for _, want := range []string{"DEBUG", "INFO", "WARN", "ERROR", "debug message", "error message"} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("WarnLevelFiltersDebugAndInfo", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("warn")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("InvalidLevelIgnored", func(t *testing.T) {
		captureOutput(t)
		SetLevel("ERROR")
		SetLevel("LOUD")
		assert.Equal(t, LevelError, GetLevel())
	})
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)

	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestTextFormat(t *testing.T) {
	t.Run("StructuredFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		Info("query done", KeyDatabase, "main", "rows", 3, "note", "has spaces")

		out := buf.String()
		assert.Contains(t, out, "[INFO] query done")
		assert.Contains(t, out, "database=main")
		assert.Contains(t, out, "rows=3")
		assert.Contains(t, out, `note="has spaces"`)
	})

	t.Run("GroupedAttrsAreQualified", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		With().WithGroup("s3").Info("put", "bucket", "b1")
		assert.Contains(t, buf.String(), "s3.bucket=b1")
	})

	t.Run("WithAttrsRenderedOnce", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		l := With(KeyBucket, "assets")
		l.Info("first")
		l.Info("second", KeyKey, "a.txt")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasSuffix(lines[0], "first bucket=assets"), lines[0])
		assert.True(t, strings.HasSuffix(lines[1], "second bucket=assets key=a.txt"), lines[1])
	})

	t.Run("ErrorValueQuoted", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		Warn("failed", "err", errors.New("disk full"))
		assert.Contains(t, buf.String(), `err="disk full"`)
	})
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")

	Info("uploaded", KeyBucket, "assets", KeySize, 42)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "uploaded", entry["msg"])
	assert.Equal(t, "assets", entry["bucket"])
	assert.EqualValues(t, 42, entry["size"])
	assert.Contains(t, entry, "time")
}

func TestContextLogging(t *testing.T) {
	t.Run("LogContextInjectsFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("json")

		lc := NewLogContext("req-1", "10.0.0.1").WithSubject("api-key").WithOperation("query")
		ctx := WithContext(context.Background(), lc)
		InfoCtx(ctx, "handled", KeyDatabase, "main")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "req-1", entry[KeyRequestID])
		assert.Equal(t, "10.0.0.1", entry[KeyClientIP])
		assert.Equal(t, "api-key", entry[KeySubject])
		assert.Equal(t, "query", entry[KeyOperation])
		assert.Equal(t, "main", entry[KeyDatabase])
	})

	t.Run("ContextWithoutLogContext", func(t *testing.T) {
		buf := captureOutput(t)
		WarnCtx(context.Background(), "plain")
		assert.Contains(t, buf.String(), "plain")
	})

	t.Run("NilContext", func(t *testing.T) {
		buf := captureOutput(t)
		//nolint:staticcheck // nil context is tolerated on purpose
		assert.Nil(t, FromContext(nil))
		//nolint:staticcheck
		InfoCtx(nil, "no context")
		assert.Contains(t, buf.String(), "no context")
	})
}

func TestLogContext(t *testing.T) {
	lc := NewLogContext("r", "1.2.3.4")
	assert.False(t, lc.StartTime.IsZero())

	traced := lc.WithTrace("t1", "s1")
	assert.Equal(t, "t1", traced.TraceID)
	assert.Empty(t, lc.TraceID, "original must not be mutated")

	var nilLC *LogContext
	assert.Nil(t, nilLC.Clone())
	assert.Nil(t, nilLC.WithOperation("x"))
	assert.Zero(t, nilLC.DurationMs())

	lc.StartTime = time.Now().Add(-50 * time.Millisecond)
	assert.GreaterOrEqual(t, lc.DurationMs(), 50.0)
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, "", Err(nil).Key)
	assert.Equal(t, KeyError, Err(errors.New("x")).Key)
	assert.Equal(t, KeyUploadID, UploadID("u").Key)
	assert.Equal(t, KeyDurationMs, DurationMs(1.5).Key)
}

func TestConcurrentLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Info("concurrent", "i", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(buf.String(), "concurrent"))
}

func TestInit(t *testing.T) {
	captureOutput(t)

	path := filepath.Join(t.TempDir(), "cfmgr.log")
	require.NoError(t, Init(Config{Level: "DEBUG", Format: "text", Output: path}))
	assert.Equal(t, LevelDebug, GetLevel())

	assert.Error(t, Init(Config{Level: "nope"}))
	assert.Error(t, Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")}))

	// Restore a buffer so the opened file is released before TempDir cleanup.
	require.NoError(t, setOutput("stderr"))
}
