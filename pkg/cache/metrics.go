package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks preview cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nyi_cache_hits_total",
			Help: "Total number of preview cache hits",
		},
	)

	// CacheMisses tracks preview cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nyi_cache_misses_total",
			Help: "Total number of preview cache misses",
		},
	)

	// CacheErrors tracks store errors, including failed purges
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyi_cache_errors_total",
			Help: "Total number of preview cache store errors",
		},
		[]string{"operation"}, // "get", "set", "purge"
	)

	// StoreOutcomes tracks the outcome of every best-effort write
	StoreOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyi_cache_store_outcomes_total",
			Help: "Total number of preview cache writes by outcome",
		},
		[]string{"outcome"}, // "stored", "skipped_full", "skipped_error"
	)
)
