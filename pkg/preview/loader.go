package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/nameyourink/pkg/client"
)

// ErrBatchConstruction is returned when a batch could not be built, e.g. the
// style list could not be fetched. No item is delivered in that case.
var ErrBatchConstruction = errors.New("batch construction failed")

// Defaults for LoaderConfig.
const (
	DefaultConcurrency = 3
	DefaultPreviewText = "ABC"
)

// Sink receives per-item results of a batch. Methods may be called
// concurrently from several workers.
type Sink interface {
	OnPreview(index int, item WorkItem, payload string)
	OnPreviewError(index int, item WorkItem, err error)
}

// StyleLister fetches the style catalog. *client.Client implements it.
type StyleLister interface {
	Styles(ctx context.Context) ([]client.Style, error)
}

// LoaderConfig holds loader configuration.
type LoaderConfig struct {
	// Concurrency is the number of workers per batch
	Concurrency int

	// PreviewText is rendered in every style by LoadStyles
	PreviewText string
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Concurrency: DefaultConcurrency,
		PreviewText: DefaultPreviewText,
	}
}

// Loader orchestrates preview batches.
type Loader struct {
	pool   *Pool
	styles StyleLister
	config LoaderConfig
	logger zerolog.Logger
}

// NewLoader creates a loader. styles is only needed by LoadStyles and may be nil.
func NewLoader(fetcher ItemFetcher, styles StyleLister, cfg LoaderConfig) (*Loader, error) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PreviewText == "" {
		cfg.PreviewText = DefaultPreviewText
	}

	pool, err := NewPool(fetcher, cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	return &Loader{
		pool:   pool,
		styles: styles,
		config: cfg,
		logger: log.With().Str("component", "preview-loader").Logger(),
	}, nil
}

// LoadAll fetches every item and routes each result to sink, then returns
// once all items are delivered. Item failures are reported to the sink only;
// the returned error is non-nil only if the batch could not be started.
func (l *Loader) LoadAll(ctx context.Context, items []WorkItem, sink Sink) (Stats, error) {
	if sink == nil {
		return Stats{}, fmt.Errorf("%w: nil sink", ErrBatchConstruction)
	}

	l.logger.Info().
		Int("items", len(items)).
		Int("concurrency", l.pool.Concurrency()).
		Msg("Loading previews")

	stats := l.pool.Run(ctx, items, func(index int, r Result) {
		item := items[index]
		if r.OK() {
			sink.OnPreview(index, item, r.Payload)
			return
		}
		sink.OnPreviewError(index, item, r.Err)
	})
	BatchDuration.Observe(stats.Duration.Seconds())

	l.logger.Info().
		Int("items", stats.Items).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("cache_hits", stats.CacheHits).
		Dur("duration", stats.Duration).
		Msg("Previews loaded")

	return stats, nil
}

// LoadStyles fetches the style catalog and loads a preview of the configured
// text for each style. If the catalog cannot be fetched the error wraps
// ErrBatchConstruction and sink is never called.
func (l *Loader) LoadStyles(ctx context.Context, sink Sink) ([]WorkItem, Stats, error) {
	if l.styles == nil {
		return nil, Stats{}, fmt.Errorf("%w: no style lister configured", ErrBatchConstruction)
	}

	styles, err := l.styles.Styles(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to fetch styles")
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrBatchConstruction, err)
	}

	items := ItemsFromStyles(styles, l.config.PreviewText)
	stats, err := l.LoadAll(ctx, items, sink)
	return items, stats, err
}

// ItemsFromStyles builds one WorkItem per style in catalog order.
func ItemsFromStyles(styles []client.Style, text string) []WorkItem {
	items := make([]WorkItem, 0, len(styles))
	for _, s := range styles {
		id := strings.TrimSpace(s.ID.String())
		if id == "" {
			continue
		}
		items = append(items, WorkItem{ID: id, DisplayText: text})
	}
	return items
}

// SinkFuncs adapts two functions to a Sink. Nil functions are skipped.
type SinkFuncs struct {
	Success func(index int, item WorkItem, payload string)
	Failure func(index int, item WorkItem, err error)
}

// OnPreview implements Sink.
func (s SinkFuncs) OnPreview(index int, item WorkItem, payload string) {
	if s.Success != nil {
		s.Success(index, item, payload)
	}
}

// OnPreviewError implements Sink.
func (s SinkFuncs) OnPreviewError(index int, item WorkItem, err error) {
	if s.Failure != nil {
		s.Failure(index, item, err)
	}
}
