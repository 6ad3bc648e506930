package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrStoreFull indicates the store refused a write because its quota is exhausted
	ErrStoreFull = errors.New("cache store full")
)

// Store is a durable but fallible key-value backend for preview entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for key, or ErrCacheMiss if absent.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores the entry for key. It returns ErrStoreFull when the
	// store's capacity is exhausted.
	Set(ctx context.Context, key Key, entry *Entry) error
}

// StoreOutcome is the result of a best-effort cache write.
type StoreOutcome int

const (
	// Stored means the entry was persisted.
	Stored StoreOutcome = iota

	// SkippedFull means the store was at capacity and the write was dropped.
	SkippedFull

	// SkippedError means the store failed and the write was dropped.
	SkippedError
)

// String returns the metric/log label of the outcome.
func (o StoreOutcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case SkippedFull:
		return "skipped_full"
	case SkippedError:
		return "skipped_error"
	default:
		return "unknown"
	}
}
