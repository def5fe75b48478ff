package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently so
// that log aggregation can query across the API, the CLI and the managers.
const (
	// Tracing & request correlation
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyRequestID = "request_id"

	// Caller
	KeyClientIP = "client_ip"
	KeySubject  = "subject"

	// Operation
	KeyOperation  = "operation"
	KeyCode       = "code"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyStatus     = "status"
	KeyMethod     = "method"
	KeyPath       = "path"

	// Row store
	KeyDatabase   = "database"
	KeyTable      = "table"
	KeyStatements = "statements"
	KeyRows       = "rows"
	KeyVersion    = "version"

	// Object store
	KeyBucket     = "bucket"
	KeyKey        = "key"
	KeySize       = "size"
	KeyUploadID   = "upload_id"
	KeyPartNumber = "part_number"
	KeyStoreType  = "store_type"
)

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Operation returns a slog.Attr for the operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Database returns a slog.Attr for a row-store instance name
func Database(name string) slog.Attr {
	return slog.String(KeyDatabase, name)
}

// Table returns a slog.Attr for a table name
func Table(name string) slog.Attr {
	return slog.String(KeyTable, name)
}

// Bucket returns a slog.Attr for a bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Size returns a slog.Attr for a byte size
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// UploadID returns a slog.Attr for a multipart upload identifier
func UploadID(id string) slog.Attr {
	return slog.String(KeyUploadID, id)
}

// Code returns a slog.Attr for an envelope error code
func Code(c string) slog.Attr {
	return slog.String(KeyCode, c)
}
