package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Cache is the best-effort preview cache in front of a Store.
// The zero value and a nil *Cache behave as an always-empty cache.
type Cache struct {
	store         Store
	schemaVersion string
	logger        zerolog.Logger
}

// New creates a cache over store using schemaVersion for key derivation.
// A nil store yields a cache that never hits and never stores.
func New(store Store, schemaVersion string, logger zerolog.Logger) *Cache {
	if schemaVersion == "" {
		schemaVersion = DefaultSchemaVersion
	}
	return &Cache{
		store:         store,
		schemaVersion: schemaVersion,
		logger:        logger.With().Str("component", "preview-cache").Logger(),
	}
}

// SchemaVersion returns the schema tag baked into every key.
func (c *Cache) SchemaVersion() string {
	if c == nil {
		return DefaultSchemaVersion
	}
	return c.schemaVersion
}

// Key returns the cache key for a style id.
func (c *Cache) Key(styleID string) Key {
	return KeyFor(c.SchemaVersion(), styleID)
}

// Get looks up the cached payload for styleID. It never fails: a store error
// or a corrupted entry is logged and reported as absent.
func (c *Cache) Get(ctx context.Context, styleID string) (string, bool) {
	if c == nil || c.store == nil {
		return "", false
	}

	key := c.Key(styleID)
	entry, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		CacheHits.Inc()
		c.logger.Debug().
			Str("style_id", styleID).
			Dur("age", entry.Age()).
			Msg("Cache hit")
		return entry.Payload, true
	case errors.Is(err, ErrCacheMiss):
		CacheMisses.Inc()
		c.logger.Debug().Str("style_id", styleID).Msg("Cache miss")
		return "", false
	default:
		CacheMisses.Inc()
		CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Cache get failed - treating as miss")
		return "", false
	}
}

// Set stores payload for styleID and reports what happened. It never fails.
func (c *Cache) Set(ctx context.Context, styleID, payload string) StoreOutcome {
	outcome := c.set(ctx, styleID, payload)
	StoreOutcomes.WithLabelValues(outcome.String()).Inc()
	return outcome
}

func (c *Cache) set(ctx context.Context, styleID, payload string) StoreOutcome {
	if c == nil || c.store == nil {
		return SkippedError
	}

	key := c.Key(styleID)
	err := c.store.Set(ctx, key, &Entry{
		Payload:  payload,
		StyleID:  styleID,
		CachedAt: time.Now().UTC(),
	})
	switch {
	case err == nil:
		c.logger.Debug().Str("style_id", styleID).Msg("Cached preview")
		return Stored
	case errors.Is(err, ErrStoreFull):
		c.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Cache full - write skipped")
		return SkippedFull
	default:
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Cache set failed - write skipped")
		return SkippedError
	}
}
