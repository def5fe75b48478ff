package timeutil

import (
	"testing"
	"time"
)

func TestFormatTime(t *testing.T) {
	ts := "2026-03-01T10:20:30.123Z"
	want := time.Date(2026, 3, 1, 10, 20, 30, 123000000, time.UTC).Local().Format(LocalTimeFormat)
	if got := FormatTime(ts); got != want {
		t.Errorf("FormatTime(%q) = %q, want %q", ts, got, want)
	}
	if got := FormatTime("yesterday"); got != "yesterday" {
		t.Errorf("FormatTime(invalid) = %q", got)
	}
}

func TestFormatExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-time.Second), "expired"},
		{now, "expired"},
		{now.Add(90*time.Minute + 400*time.Millisecond), "in 1h30m0s"},
	}
	for _, tt := range tests {
		if got := FormatExpiry(tt.at, now); got != tt.want {
			t.Errorf("FormatExpiry(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}
