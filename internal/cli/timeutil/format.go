// Package timeutil formats timestamps for CLI output.
package timeutil

import (
	"time"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatTime parses an RFC 3339 timestamp (with or without fractional
// seconds) and returns it in local time. Unparseable input is returned
// unchanged.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatExpiry describes when t expires relative to now: "never" for the
// zero time, "expired" when past, or the remaining duration rounded to
// the second.
func FormatExpiry(t, now time.Time) string {
	switch {
	case t.IsZero():
		return "never"
	case !t.After(now):
		return "expired"
	default:
		return "in " + t.Sub(now).Round(time.Second).String()
	}
}
