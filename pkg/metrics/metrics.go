// Package metrics exposes the Prometheus registry used by nameyourink.
// All metrics are defined in their respective packages (cache, preview,
// client, textstudio, server) and registered through promauto.
//
// This package provides the /metrics handler and a reference of all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all nameyourink metrics use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving all registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - nyi_cache_hits_total (Counter): Preview cache hits
//   - nyi_cache_misses_total (Counter): Preview cache misses (including store errors)
//   - nyi_cache_errors_total{operation} (Counter): Swallowed store errors (get, set, purge)
//   - nyi_cache_store_outcomes_total{outcome} (Counter): Writes by outcome (stored, skipped_full, skipped_error)
//
// Preview Metrics (pkg/preview):
//   - nyi_preview_fetch_total{source, outcome} (Counter): Resolved items by source (cache, remote, shared)
//   - nyi_preview_inflight (Gauge): Remote preview calls currently running
//   - nyi_preview_batch_duration_seconds (Histogram): Duration of whole batches
//   - nyi_preview_callback_panics_total (Counter): Panics recovered from result callbacks
//
// Backend Client Metrics (pkg/client):
//   - nyi_backend_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - nyi_backend_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//
// TextStudio Metrics (pkg/textstudio):
//   - nyi_textstudio_requests_total{status} (Counter): Upstream attempts by HTTP status
//   - nyi_textstudio_request_duration_seconds (Histogram): Upstream attempt duration
//   - nyi_textstudio_retries_total{error_class} (Counter): Retry attempts by error class
//   - nyi_textstudio_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - nyi_textstudio_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Server Metrics (internal/server):
//   - nyi_http_requests_total{path, code} (Counter): Served requests by route and status
//   - nyi_http_request_duration_seconds{path} (Histogram): Served request duration by route
//   - nyi_archive_total{outcome} (Counter): Generated images archived to object storage
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(nyi_cache_hits_total[5m])) /
//   (sum(rate(nyi_cache_hits_total[5m])) + sum(rate(nyi_cache_misses_total[5m])))
//
//   # Preview Failure Rate
//   sum(rate(nyi_preview_fetch_total{outcome="failure"}[5m])) /
//   sum(rate(nyi_preview_fetch_total[5m]))
//
//   # Full Cache
//   rate(nyi_cache_store_outcomes_total{outcome="skipped_full"}[5m]) > 0
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(nyi_textstudio_request_duration_seconds_bucket[5m]))
