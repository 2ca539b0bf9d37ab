// Package metrics provides Prometheus metrics for the aggregation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Adapter fetch outcomes.
const (
	OutcomeLive   = "live"
	OutcomeCached = "cached"
	OutcomeFailed = "failed"
)

// Set collects and exposes pipeline metrics on its own registry.
type Set struct {
	registry *prometheus.Registry

	// Aggregation metrics
	AggregationsTotal  *prometheus.CounterVec
	AggregationSeconds prometheus.Histogram
	MatchesMerged      prometheus.Histogram

	// Adapter metrics
	AdapterFetches *prometheus.CounterVec
	FetchSeconds   *prometheus.HistogramVec

	// Results log metrics
	LogAppends           *prometheus.CounterVec
	SecondaryStoreErrors prometheus.Counter
}

// New creates a metrics set with a private registry.
func New() *Set {
	registry := prometheus.NewRegistry()

	s := &Set{
		registry: registry,

		AggregationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsfeed_aggregations_total",
				Help: "Aggregation runs by result",
			},
			[]string{"result"},
		),
		AggregationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oddsfeed_aggregation_seconds",
				Help:    "Wall time of a full aggregation run",
				Buckets: prometheus.DefBuckets,
			},
		),
		MatchesMerged: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oddsfeed_matches_merged",
				Help:    "Consensus matches produced per aggregation",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		AdapterFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsfeed_adapter_fetches_total",
				Help: "Adapter fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		FetchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddsfeed_fetch_seconds",
				Help:    "Adapter fetch latency by source",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		LogAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsfeed_log_appends_total",
				Help: "Results log appends by entry type",
			},
			[]string{"type"},
		),
		SecondaryStoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oddsfeed_secondary_store_errors_total",
				Help: "Swallowed secondary document store failures",
			},
		),
	}

	registry.MustRegister(
		s.AggregationsTotal,
		s.AggregationSeconds,
		s.MatchesMerged,
		s.AdapterFetches,
		s.FetchSeconds,
		s.LogAppends,
		s.SecondaryStoreErrors,
	)

	return s
}

// Handler returns an HTTP handler exposing the registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
