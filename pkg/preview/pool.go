package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidConcurrency is returned by NewPool for a concurrency below 1.
var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// ErrFetchPanic wraps a panic recovered from an ItemFetcher.
var ErrFetchPanic = errors.New("fetch panicked")

// cursor hands out the indices [0, n) exactly once across all workers.
type cursor struct {
	next atomic.Int64
	n    int64
}

// claim reserves the next unclaimed index. The add is the only
// synchronization between workers.
func (c *cursor) claim() (int, bool) {
	i := c.next.Add(1) - 1
	if i >= c.n {
		return 0, false
	}
	return int(i), true
}

// runState is the per-run counters shared by the workers.
type runState struct {
	cursor    cursor
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	panics    atomic.Int64
}

// Pool runs a fixed number of workers over a batch of WorkItems.
type Pool struct {
	fetcher     ItemFetcher
	concurrency int
	logger      zerolog.Logger
}

// NewPool creates a pool with the given number of workers.
func NewPool(fetcher ItemFetcher, concurrency int) (*Pool, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("preview: nil fetcher")
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidConcurrency, concurrency)
	}

	return &Pool{
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      log.With().Str("component", "preview-pool").Logger(),
	}, nil
}

// Concurrency returns the number of workers started per run.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// Run fetches every item and calls onResult exactly once per index, from the
// worker that resolved it. Calls may run concurrently and arrive in any order.
// A panic in onResult is recovered and counted; the worker moves on to its
// next item. Run returns after all workers have exhausted the items.
func (p *Pool) Run(ctx context.Context, items []WorkItem, onResult func(index int, r Result)) Stats {
	start := time.Now()

	state := &runState{}
	state.cursor.n = int64(len(items))

	var wg sync.WaitGroup
	for w := 0; w < p.concurrency; w++ {
		wg.Add(1)
		go p.worker(ctx, w, items, state, onResult, &wg)
	}
	wg.Wait()

	stats := Stats{
		Items:          len(items),
		Succeeded:      int(state.succeeded.Load()),
		Failed:         int(state.failed.Load()),
		CacheHits:      int(state.cacheHits.Load()),
		CallbackPanics: int(state.panics.Load()),
		Duration:       time.Since(start),
	}

	p.logger.Debug().
		Int("items", stats.Items).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("cache_hits", stats.CacheHits).
		Dur("duration", stats.Duration).
		Msg("Pool run complete")

	return stats
}

func (p *Pool) worker(ctx context.Context, workerID int, items []WorkItem, state *runState, onResult func(int, Result), wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for {
		i, ok := state.cursor.claim()
		if !ok {
			break
		}

		r := p.fetch(ctx, items[i])
		switch {
		case !r.OK():
			state.failed.Add(1)
		case r.Cached:
			state.succeeded.Add(1)
			state.cacheHits.Add(1)
		default:
			state.succeeded.Add(1)
		}

		p.deliver(onResult, i, r, state)
		processed++
	}

	if processed > 0 {
		p.logger.Trace().
			Int("worker_id", workerID).
			Int("items_processed", processed).
			Msg("Worker completed")
	}
}

// fetch calls the fetcher, turning a panic into a Failure for that item.
func (p *Pool) fetch(ctx context.Context, item WorkItem) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error().
				Str("style_id", item.ID).
				Interface("panic", rec).
				Msg("Fetcher panicked")
			r = Failure(fmt.Errorf("%w: %v", ErrFetchPanic, rec))
		}
	}()
	return p.fetcher.Fetch(ctx, item)
}

func (p *Pool) deliver(onResult func(int, Result), index int, r Result, state *runState) {
	if onResult == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			state.panics.Add(1)
			CallbackPanics.Inc()
			p.logger.Error().
				Int("index", index).
				Interface("panic", rec).
				Msg("Result callback panicked")
		}
	}()
	onResult(index, r)
}
