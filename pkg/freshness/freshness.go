// Package freshness decides whether a stored response may still be used.
//
// A stored response is fresh for MaxAge after the moment it was captured.
// The capture time travels with the stored response as the `sw-cache-time`
// header, an ISO-8601 timestamp, which is the only contract other writers
// of the cache need to respect.
package freshness

import (
	"strings"
	"time"
)

// MaxAge is how long a captured response stays fresh.
const MaxAge = 2 * 24 * time.Hour

// Header is the name of the capture marker header.
const Header = "Sw-Cache-Time"

// markerLayout is ISO-8601 with millisecond precision, e.g. 2024-03-10T12:00:00.000Z.
const markerLayout = "2006-01-02T15:04:05.000Z07:00"

// IsExpired reports whether a response captured at capturedAt is stale at now.
// A zero capturedAt means the marker was missing or unreadable, which is always stale.
func IsExpired(capturedAt, now time.Time) bool {
	if capturedAt.IsZero() {
		return true
	}
	return now.Sub(capturedAt) > MaxAge
}

// FormatMarker returns the header value for a response captured at t.
func FormatMarker(t time.Time) string {
	return t.UTC().Format(markerLayout)
}

// ParseMarker parses a capture marker header value.
// It returns the zero time if the value is empty or not a valid timestamp.
func ParseMarker(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
