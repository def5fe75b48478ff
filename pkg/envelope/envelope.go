// Package envelope defines the uniform response wrapper returned by the
// row-store and object-store managers.
//
// Every manager operation returns a Result: on success Data is set and
// Error is nil, on failure Error is set and Data is nil. Meta carries the
// measured duration of the backend call(s) plus per-operation counters.
//
// Runtime and backend failures are reported inside the envelope with a
// Code from the closed taxonomy below. Caller misuse (unknown instance,
// wrong statement kind, missing required argument) is reported as a Go
// error instead; see ErrInstanceNotFound and friends.
package envelope

import (
	"math"
	"time"
)

// Result is the response envelope for a single manager operation.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Error describes a runtime or backend failure.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries timing and aggregate counters for an operation.
type Meta struct {
	DurationMs        float64 `json:"duration_ms"`
	Count             *int    `json:"count,omitempty"`
	TotalSize         *int64  `json:"total_size,omitempty"`
	CommonPrefixCount *int    `json:"common_prefix_count,omitempty"`
	PartialContent    *bool   `json:"partial_content,omitempty"`
}

// OK builds a successful envelope.
func OK[T any](data T, meta *Meta) *Result[T] {
	return &Result[T]{Success: true, Data: &data, Meta: meta}
}

// Fail builds a failed envelope.
func Fail[T any](code Code, message string, details map[string]any, meta *Meta) *Result[T] {
	return &Result[T]{
		Success: false,
		Error:   &Error{Code: code, Message: message, Details: details},
		Meta:    meta,
	}
}

// Forward re-types a failed envelope so that composite operations can
// return the failure of one of their sub-operations unchanged.
func Forward[T, U any](r *Result[U]) *Result[T] {
	return &Result[T]{Success: false, Error: r.Error, Meta: r.Meta}
}

// Code returns the error code of a failed envelope, or "" on success.
func (r *Result[T]) Code() Code {
	if r == nil || r.Error == nil {
		return ""
	}
	return r.Error.Code
}

// Since returns the elapsed wall-clock time since start in milliseconds,
// rounded to two decimal places.
func Since(start time.Time) float64 {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	if ms < 0 {
		return 0
	}
	return math.Round(ms*100) / 100
}

// Timed returns a Meta holding only the duration since start.
func Timed(start time.Time) *Meta {
	return &Meta{DurationMs: Since(start)}
}

// Int returns a pointer to v, for populating optional Meta counters.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
