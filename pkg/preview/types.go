package preview

import (
	"errors"
	"time"
)

// WorkItem is one unit of batch work: a style and the text to preview it with.
type WorkItem struct {
	ID          string
	DisplayText string
}

// Result is the outcome of fetching one WorkItem. Exactly one of Payload and
// Err is meaningful: a Result with a nil Err is a success.
type Result struct {
	Payload string
	Err     error

	// Cached is true when Payload came from the cache.
	Cached bool
}

// errUnknownFailure stands in for a nil error passed to Failure.
var errUnknownFailure = errors.New("unknown failure")

// Success returns a successful Result carrying payload.
func Success(payload string) Result {
	return Result{Payload: payload}
}

// Failure returns a failed Result. A nil err is replaced by a generic error
// so that a Failure is never mistaken for a Success.
func Failure(err error) Result {
	if err == nil {
		err = errUnknownFailure
	}
	return Result{Err: err}
}

// OK reports whether r is a success.
func (r Result) OK() bool {
	return r.Err == nil
}

// Stats summarizes one pool run.
type Stats struct {
	Items          int
	Succeeded      int
	Failed         int
	CacheHits      int
	CallbackPanics int
	Duration       time.Duration
}
