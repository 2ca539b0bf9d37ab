// Package cache implements the per-source consistency cache: the last
// successfully fetched result for every (source, query) key, substituted
// verbatim when a fresh fetch fails. Its job is stability, not freshness —
// repeated failed refreshes must keep serving the identical answer rather
// than a flapping one. Entries never expire; a process restart clears them.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// ErrNoCachedFallback is returned when a fetch fails and the key has never
// been successfully observed. Callers can then distinguish "source has
// nothing today" (empty result, nil error) from "we know nothing at all".
var ErrNoCachedFallback = errors.New("source unavailable and no cached fallback")

// FallbackError carries the fetch failure alongside the missing key.
type FallbackError struct {
	Key   string
	Cause error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Key, ErrNoCachedFallback, e.Cause)
}

func (e *FallbackError) Unwrap() error { return e.Cause }

func (e *FallbackError) Is(target error) bool { return target == ErrNoCachedFallback }

// Result is what GetOrFetch hands back: the records plus their provenance.
type Result struct {
	Records   []feed.Record
	FromCache bool
	FetchedAt time.Time
}

type entry struct {
	mu        sync.Mutex // serializes fetch-then-overwrite per key
	records   []feed.Record
	fetchedAt time.Time
	populated bool
}

// Store is the consistency cache. Distinct keys never contend; two requests
// refreshing the same key serialize so one cannot clobber the other's
// freshly stored result with a fallback read.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty cache.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Key builds the cache key for a source and query.
func Key(source string, q feed.Query) string {
	return source + "|" + q.Key()
}

// GetOrFetch runs fetch under the key's lock. On success the entry is
// overwritten unconditionally — an empty-but-successful result replaces
// whatever was cached, because the source confirmed it has nothing. On
// failure the previously cached records are returned verbatim; if the key
// has never succeeded, a FallbackError propagates the failure.
func (s *Store) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]feed.Record, error)) (Result, error) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := fetch(ctx)
	if err == nil {
		e.records = slices.Clone(records)
		e.fetchedAt = time.Now()
		e.populated = true
		return Result{Records: records, FromCache: false, FetchedAt: e.fetchedAt}, nil
	}

	if !e.populated {
		return Result{}, &FallbackError{Key: key, Cause: err}
	}
	return Result{Records: slices.Clone(e.records), FromCache: true, FetchedAt: e.fetchedAt}, nil
}

// Peek returns the cached records for a key without fetching.
func (s *Store) Peek(key string) (Result, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return Result{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.populated {
		return Result{}, false
	}
	return Result{Records: slices.Clone(e.records), FromCache: true, FetchedAt: e.fetchedAt}, true
}

// Len reports how many keys hold a last-known-good result.
func (s *Store) Len() int {
	s.mu.Lock()
	all := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.Unlock()

	n := 0
	for _, e := range all {
		e.mu.Lock()
		if e.populated {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func (s *Store) entry(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}
