// Package source defines the adapter contract for external prediction and
// odds providers, plus the shared HTTP fetch client the concrete adapters
// are built on. Each adapter is an isolated failure domain: transport-level
// failure is reported as ErrSourceUnavailable so callers can tell it apart
// from a source that genuinely has nothing today (an empty, nil-error
// result).
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// DefaultTimeout bounds a single adapter fetch so one degraded source
// cannot stall a whole aggregation pass.
const DefaultTimeout = 8 * time.Second

// ErrSourceUnavailable marks transport-level failure: timeout, non-2xx,
// unparsable response. Expected "no data" conditions return an empty slice
// and a nil error instead.
var ErrSourceUnavailable = errors.New("source unavailable")

// Adapter fetches and normalizes records from one external source.
type Adapter interface {
	// Name identifies the adapter in cache keys, provenance and logs.
	Name() string

	// Fetch returns all records matching the query. It returns an empty
	// slice (not an error) when the source confirms it has nothing, and an
	// error wrapping ErrSourceUnavailable for transport failure.
	Fetch(ctx context.Context, q feed.Query) ([]feed.Record, error)
}

// Unavailable wraps err as a transport failure attributed to a source.
func Unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrSourceUnavailable, err)
}

// timed bounds every Fetch with its own deadline.
type timed struct {
	Adapter
	timeout time.Duration
}

// WithTimeout wraps an adapter so each Fetch runs under its own deadline,
// independent of sibling adapters. A non-positive d selects DefaultTimeout.
func WithTimeout(a Adapter, d time.Duration) Adapter {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timed{Adapter: a, timeout: d}
}

func (t *timed) Fetch(ctx context.Context, q feed.Query) ([]feed.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	records, err := t.Adapter.Fetch(ctx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrSourceUnavailable) {
			return nil, Unavailable(t.Name(), err)
		}
		return nil, err
	}
	return records, nil
}

// Func adapts a plain function into an Adapter. Used heavily in tests and
// for one-off sources that need no state.
type Func struct {
	AdapterName string
	FetchFunc   func(ctx context.Context, q feed.Query) ([]feed.Record, error)
}

func (f Func) Name() string { return f.AdapterName }

func (f Func) Fetch(ctx context.Context, q feed.Query) ([]feed.Record, error) {
	return f.FetchFunc(ctx, q)
}
