// Package cache provides the best-effort preview cache used by the preview loader.
//
// A preview payload (a data URL of the rendered image) is stored under a key
// derived from the cache schema version and the style id:
//
//	nyi:preview:<schema>:<style id>
//
// Changing the schema version moves every key into a new namespace, which
// invalidates old entries without a migration. Entries never expire; they
// live until the store is cleared (RedisStore.Purge, MemoryStore.Clear).
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewRedisStore(redisClient)
//	c := cache.New(store, cache.DefaultSchemaVersion, logger)
//
//	if payload, ok := c.Get(ctx, "261"); ok {
//		// render cached preview
//	}
//
//	switch c.Set(ctx, "261", payload) {
//	case cache.Stored:
//	case cache.SkippedFull:  // store quota reached, write dropped
//	case cache.SkippedError: // store unavailable, write dropped
//	}
//
// Cache never returns an error to the caller. Store failures degrade to
// no-cache behaviour and are visible only in logs and metrics.
//
// # Metrics
//
//   - nyi_cache_hits_total - Cache hits
//   - nyi_cache_misses_total - Cache misses
//   - nyi_cache_errors_total{operation} - Store errors by operation
//   - nyi_cache_store_outcomes_total{outcome} - Set outcomes
package cache
