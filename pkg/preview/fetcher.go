package preview

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/nameyourink/pkg/cache"
)

// ErrEmptyPayload is returned when the remote reports success without a payload.
var ErrEmptyPayload = errors.New("remote returned empty payload")

// DefaultSharedTimeout bounds a deduplicated remote call, which no longer
// follows the cancellation of the caller that started it.
const DefaultSharedTimeout = 30 * time.Second

// Remote renders one preview. *client.Client implements it.
type Remote interface {
	Preview(ctx context.Context, styleID, text string) (string, error)
}

// ItemFetcher resolves a single WorkItem. Implementations must be safe for
// concurrent use and must not panic; the Pool recovers if they do.
type ItemFetcher interface {
	Fetch(ctx context.Context, item WorkItem) Result
}

// Fetcher is the cache-first ItemFetcher.
type Fetcher struct {
	remote Remote
	cache  *cache.Cache
	group  *singleflight.Group
	shared time.Duration
	key    func(WorkItem) string
	logger zerolog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithDedupe collapses concurrent misses for the same item into one remote
// call. Off by default. The shared call runs detached from every caller's
// cancellation, bounded by DefaultSharedTimeout; a caller whose context ends
// stops waiting without failing the others.
func WithDedupe() FetcherOption {
	return func(f *Fetcher) {
		f.group = &singleflight.Group{}
	}
}

// WithSharedTimeout overrides the deadline of deduplicated remote calls.
func WithSharedTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.shared = d
	}
}

// WithCacheKey sets how an item maps to its cache entry. The default is the
// item ID, which assumes one display text per cache namespace.
func WithCacheKey(key func(WorkItem) string) FetcherOption {
	return func(f *Fetcher) {
		f.key = key
	}
}

// TextCacheKey keys entries by ID and display text. The text is base64url
// encoded, so it keeps its whitespace and cannot contain the ':' separator.
func TextCacheKey(item WorkItem) string {
	return strings.TrimSpace(item.ID) + ":" + base64.RawURLEncoding.EncodeToString([]byte(item.DisplayText))
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher. previewCache may be nil, in which case every
// fetch goes to the remote.
func NewFetcher(remote Remote, previewCache *cache.Cache, opts ...FetcherOption) *Fetcher {
	if remote == nil {
		panic("preview: nil remote")
	}

	f := &Fetcher{
		remote: remote,
		cache:  previewCache,
		key:    func(item WorkItem) string { return item.ID },
		logger: log.With().Str("component", "preview-fetcher").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.shared <= 0 {
		f.shared = DefaultSharedTimeout
	}
	return f
}

// Fetch resolves item cache-first. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, item WorkItem) Result {
	if payload, ok := f.cache.Get(ctx, f.key(item)); ok {
		FetchTotal.WithLabelValues("cache", "success").Inc()
		return Result{Payload: payload, Cached: true}
	}

	if f.group == nil {
		return f.record("remote", f.fetchRemote(ctx, item))
	}

	ch := f.group.DoChan(item.ID+"\x00"+item.DisplayText, func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.shared)
		defer cancel()
		r := f.fetchRemote(sharedCtx, item)
		return r.Payload, r.Err
	})

	select {
	case res := <-ch:
		source := "remote"
		if res.Shared {
			source = "shared"
		}
		if res.Err != nil {
			return f.record(source, Failure(res.Err))
		}
		return f.record(source, Success(res.Val.(string)))
	case <-ctx.Done():
		return f.record("shared", Failure(fmt.Errorf("preview %s: %w", item.ID, ctx.Err())))
	}
}

// fetchRemote performs the single remote call for a cache miss and caches a
// successful payload.
func (f *Fetcher) fetchRemote(ctx context.Context, item WorkItem) Result {
	InFlight.Inc()
	payload, err := f.remote.Preview(ctx, item.ID, item.DisplayText)
	InFlight.Dec()

	if err != nil {
		f.logger.Debug().
			Err(err).
			Str("style_id", item.ID).
			Msg("Preview fetch failed")
		return Failure(fmt.Errorf("preview %s: %w", item.ID, err))
	}
	if payload == "" {
		return Failure(fmt.Errorf("preview %s: %w", item.ID, ErrEmptyPayload))
	}

	if outcome := f.cache.Set(ctx, f.key(item), payload); outcome != cache.Stored {
		f.logger.Debug().
			Str("style_id", item.ID).
			Str("outcome", outcome.String()).
			Msg("Preview not cached")
	}

	return Success(payload)
}

func (f *Fetcher) record(source string, r Result) Result {
	outcome := "success"
	if !r.OK() {
		outcome = "failure"
	}
	FetchTotal.WithLabelValues(source, outcome).Inc()
	return r
}
