package cache

import (
	"time"
)

// Entry represents a cached preview.
type Entry struct {
	// Payload is the opaque preview data (a data URL)
	Payload string `json:"payload"`

	// StyleID repeats the key's style id for inspection of raw store contents
	StyleID string `json:"style_id"`

	// CachedAt is when we cached this preview
	CachedAt time.Time `json:"cached_at"`
}

// Valid reports whether the entry carries a payload.
func (e *Entry) Valid() bool {
	return e != nil && e.Payload != ""
}

// Age returns how long ago the entry was cached.
func (e *Entry) Age() time.Duration {
	if e == nil || e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}
