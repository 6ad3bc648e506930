package preview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts resolved items by source and outcome
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nyi_preview_fetch_total",
			Help: "Total preview fetches by source and outcome",
		},
		[]string{"source", "outcome"}, // source: "cache", "remote", "shared"; outcome: "success", "failure"
	)

	// InFlight is the number of remote preview calls currently running
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nyi_preview_inflight",
			Help: "Number of in-flight remote preview calls",
		},
	)

	// BatchDuration observes how long a whole batch took
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nyi_preview_batch_duration_seconds",
			Help:    "Duration of preview batches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// CallbackPanics counts panics recovered from result callbacks
	CallbackPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nyi_preview_callback_panics_total",
			Help: "Total panics recovered from preview result callbacks",
		},
	)
)
