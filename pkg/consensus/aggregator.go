// Package consensus merges normalized records from independent sources into
// one match-centric view. Adapters are invoked concurrently through the
// consistency cache, so a degraded source degrades to its last known good
// answer instead of flapping, and a single dead source never aborts the
// rest of the pass.
package consensus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/magajico/oddsfeed/pkg/cache"
	"github.com/magajico/oddsfeed/pkg/feed"
	"github.com/magajico/oddsfeed/pkg/metrics"
	"github.com/magajico/oddsfeed/pkg/source"
)

// Consensus is the agreement block computed per merged match.
type Consensus struct {
	Prediction    string  `json:"prediction"`
	AvgConfidence float64 `json:"avg_confidence"`
	AgreementPct  float64 `json:"agreement_pct"`
}

// Match is one merged, match-centric view over the contributing records.
// It references the records as produced by the adapters; nothing here is
// persisted — the results log owns durability.
type Match struct {
	HomeTeam  string        `json:"home_team"`
	AwayTeam  string        `json:"away_team"`
	League    string        `json:"league,omitempty"`
	GameTime  string        `json:"game_time,omitempty"`
	Records   []feed.Record `json:"records"`
	Consensus Consensus     `json:"consensus"`
}

// SourceStatus reports, per contributing source, whether its data is live
// or cache-derived, so consumers can reason about staleness.
type SourceStatus struct {
	Name      string `json:"name"`
	FromCache bool   `json:"from_cache"`
	Failed    bool   `json:"failed,omitempty"`
	Error     string `json:"error,omitempty"`
	Records   int    `json:"records"`
}

// Result is a full aggregation response.
type Result struct {
	Matches []Match        `json:"matches"`
	Sources []SourceStatus `json:"sources"`
}

// AllSourcesFailedError is returned when no adapter produced data and no
// key had a cached fallback. It names every contributing cause.
type AllSourcesFailedError struct {
	Causes map[string]error
}

func (e *AllSourcesFailedError) Error() string {
	names := make([]string, 0, len(e.Causes))
	for name := range e.Causes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("no data available from any source:")
	for _, name := range names {
		fmt.Fprintf(&b, " %s: %v;", name, e.Causes[name])
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Aggregator runs the fan-out, merge and consensus computation.
type Aggregator struct {
	store   *cache.Store
	logger  *zap.Logger
	metrics *metrics.Set
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics wires the Prometheus set.
func WithMetrics(m *metrics.Set) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New creates an aggregator over the given consistency cache.
func New(store *cache.Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fetchOutcome struct {
	result cache.Result
	err    error
}

// Aggregate invokes every adapter concurrently through the cache, merges
// the records by team identity and computes per-match consensus, then
// applies the filter to the merged view. It fails only when every adapter
// failed with nothing cached to fall back on.
func (a *Aggregator) Aggregate(ctx context.Context, adapters []source.Adapter, q feed.Query, f Filter) (*Result, error) {
	minConfidence, err := f.confidenceFloor()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	outcomes := make([]fetchOutcome, len(adapters))

	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter source.Adapter) {
			defer wg.Done()

			key := cache.Key(adapter.Name(), q)
			fetchStart := time.Now()
			res, err := a.store.GetOrFetch(ctx, key, func(ctx context.Context) ([]feed.Record, error) {
				return adapter.Fetch(ctx, q)
			})
			a.observeFetch(adapter.Name(), time.Since(fetchStart), res, err)
			outcomes[i] = fetchOutcome{result: res, err: err}
		}(i, adapter)
	}
	wg.Wait()

	statuses := make([]SourceStatus, len(adapters))
	causes := make(map[string]error)
	var contributions []contribution

	for i, adapter := range adapters {
		out := outcomes[i]
		status := SourceStatus{Name: adapter.Name()}
		if out.err != nil {
			status.Failed = true
			status.Error = out.err.Error()
			causes[adapter.Name()] = out.err
			a.logger.Warn("source contributed nothing",
				zap.String("source", adapter.Name()),
				zap.Error(out.err))
		} else {
			status.FromCache = out.result.FromCache
			status.Records = len(out.result.Records)
			for _, rec := range out.result.Records {
				contributions = append(contributions, contribution{record: rec, order: i})
			}
		}
		statuses[i] = status
	}

	if len(causes) == len(adapters) && len(adapters) > 0 {
		if a.metrics != nil {
			a.metrics.AggregationsTotal.WithLabelValues("failed").Inc()
		}
		return nil, &AllSourcesFailedError{Causes: causes}
	}

	matches := mergeContributions(contributions)
	filtered := make([]Match, 0, len(matches))
	for _, m := range matches {
		if f.keep(m, minConfidence) {
			filtered = append(filtered, m)
		}
	}

	if a.metrics != nil {
		a.metrics.AggregationsTotal.WithLabelValues("ok").Inc()
		a.metrics.AggregationSeconds.Observe(time.Since(started).Seconds())
		a.metrics.MatchesMerged.Observe(float64(len(filtered)))
	}
	a.logger.Info("aggregation complete",
		zap.String("query", q.String()),
		zap.Int("sources", len(adapters)),
		zap.Int("failed", len(causes)),
		zap.Int("matches", len(filtered)),
		zap.Duration("elapsed", time.Since(started)))

	return &Result{Matches: filtered, Sources: statuses}, nil
}

func (a *Aggregator) observeFetch(name string, elapsed time.Duration, res cache.Result, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.FetchSeconds.WithLabelValues(name).Observe(elapsed.Seconds())

	outcome := metrics.OutcomeLive
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
	case res.FromCache:
		outcome = metrics.OutcomeCached
	}
	a.metrics.AdapterFetches.WithLabelValues(name, outcome).Inc()
}
