package resultslog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/magajico/oddsfeed/pkg/docstore"
	"github.com/magajico/oddsfeed/pkg/feed"
	"github.com/magajico/oddsfeed/pkg/metrics"
)

// Secondary store collection names, one per entry type.
const (
	collectionPredictions = "predictions"
	collectionOdds        = "odds"
	collectionMatches     = "matches"
	collectionAccuracy    = "accuracy"
)

// Log owns the durable results store. All appends serialize on one mutex:
// the primary store rewrites the whole document per append, so interleaved
// writers would corrupt it.
type Log struct {
	mu        sync.Mutex
	path      string
	doc       document
	secondary docstore.Store
	logger    *zap.Logger
	metrics   *metrics.Set
}

// Option configures the log.
type Option func(*Log)

// WithSecondary attaches a secondary document store. Failures against it
// are logged and swallowed; it is a query optimization, not the source of
// truth.
func WithSecondary(store docstore.Store) Option {
	return func(l *Log) { l.secondary = store }
}

// WithLogger sets the zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithMetrics wires the Prometheus set.
func WithMetrics(m *metrics.Set) Option {
	return func(l *Log) { l.metrics = m }
}

// Open loads the document at path, creating a fresh one when the file does
// not exist yet.
func Open(path string, opts ...Option) (*Log, error) {
	l := &Log{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		l.doc = document{Metadata: metadata{Created: time.Now().UTC()}}
	case err != nil:
		return nil, fmt.Errorf("read results log: %w", err)
	default:
		if err := json.Unmarshal(data, &l.doc); err != nil {
			return nil, fmt.Errorf("parse results log %s: %w", path, err)
		}
	}
	return l, nil
}

// LogPrediction appends a prediction observation.
func (l *Log) LogPrediction(ctx context.Context, rec feed.Record) (Entry, error) {
	return l.append(ctx, TypePrediction, rec)
}

// LogOdds appends a bookmaker odds observation.
func (l *Log) LogOdds(ctx context.Context, obs OddsObservation) (Entry, error) {
	return l.append(ctx, TypeOdds, obs)
}

// LogMatch appends a match observation (scores, status).
func (l *Log) LogMatch(ctx context.Context, rec feed.Record) (Entry, error) {
	return l.append(ctx, TypeMatch, rec)
}

func (l *Log) append(ctx context.Context, typ EntryType, payload any) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	entry := Entry{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	target := l.entriesFor(typ)
	*target = append(*target, entry)
	l.doc.Metadata.TotalLogs++

	if err := l.persist(); err != nil {
		*target = (*target)[:len(*target)-1]
		l.doc.Metadata.TotalLogs--
		return Entry{}, err
	}

	if l.metrics != nil {
		l.metrics.LogAppends.WithLabelValues(string(typ)).Inc()
	}
	l.writeSecondary(ctx, collectionFor(typ), entry.ID, entry)
	return entry, nil
}

// LogResult records the accuracy of a previously logged prediction against
// the actual outcome. The stored prediction is looked up by entry ID; its
// odds, if any, travel onto the accuracy record.
func (l *Log) LogResult(ctx context.Context, predictionID, actual string) (AccuracyRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var predicted feed.Record
	found := false
	for _, e := range l.doc.Predictions {
		if e.ID == predictionID {
			if err := json.Unmarshal(e.Payload, &predicted); err != nil {
				return AccuracyRecord{}, fmt.Errorf("decode prediction %s: %w", predictionID, err)
			}
			found = true
			break
		}
	}
	if !found {
		return AccuracyRecord{}, fmt.Errorf("prediction %s not found", predictionID)
	}

	record := AccuracyRecord{
		ID:           uuid.New().String(),
		PredictionID: predictionID,
		Match:        predicted.HomeTeam + " vs " + predicted.AwayTeam,
		Predicted:    predicted.Prediction,
		Actual:       actual,
		Correct:      strings.EqualFold(predicted.Prediction, actual),
		Odds:         predicted.Odds,
		Timestamp:    time.Now().UTC(),
	}

	l.doc.Accuracy = append(l.doc.Accuracy, record)
	l.doc.Metadata.TotalAccuracyRecords++

	if err := l.persist(); err != nil {
		l.doc.Accuracy = l.doc.Accuracy[:len(l.doc.Accuracy)-1]
		l.doc.Metadata.TotalAccuracyRecords--
		return AccuracyRecord{}, err
	}

	if l.metrics != nil {
		l.metrics.LogAppends.WithLabelValues(string(TypeAccuracy)).Inc()
	}
	l.writeSecondary(ctx, collectionAccuracy, record.ID, record)
	return record, nil
}

// GetRecent returns up to count entries of the given type, newest first.
// An empty type merges predictions, odds and matches.
func (l *Log) GetRecent(count int, typ EntryType) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []Entry
	switch typ {
	case TypePrediction:
		entries = append(entries, l.doc.Predictions...)
	case TypeOdds:
		entries = append(entries, l.doc.Odds...)
	case TypeMatch:
		entries = append(entries, l.doc.Matches...)
	default:
		entries = append(entries, l.doc.Predictions...)
		entries = append(entries, l.doc.Odds...)
		entries = append(entries, l.doc.Matches...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if count > 0 && len(entries) > count {
		entries = entries[:count]
	}
	return entries
}

// GetTrainingData returns every logged observation.
func (l *Log) GetTrainingData() TrainingData {
	l.mu.Lock()
	defer l.mu.Unlock()

	return TrainingData{
		Predictions: append([]Entry(nil), l.doc.Predictions...),
		Odds:        append([]Entry(nil), l.doc.Odds...),
		Matches:     append([]Entry(nil), l.doc.Matches...),
		Accuracy:    append([]AccuracyRecord(nil), l.doc.Accuracy...),
	}
}

// GetAccuracyStats summarizes all accuracy records. With no records it
// returns the zero-value stats rather than dividing by zero.
func (l *Log) GetAccuracyStats() AccuracyStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := AccuracyStats{Total: len(l.doc.Accuracy)}
	for _, r := range l.doc.Accuracy {
		if r.Correct {
			stats.Correct++
		} else {
			stats.Incorrect++
		}
	}
	if stats.Total > 0 {
		pct := decimal.NewFromInt(int64(stats.Correct)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.Total)))
		stats.AccuracyPercentage = pct.Round(2).InexactFloat64()
	}
	return stats
}

// SyncSecondary pushes every primary entry into the secondary store with
// insert-if-absent semantics. It is idempotent and meant to run once at
// startup when a secondary store becomes available.
func (l *Log) SyncSecondary(ctx context.Context) error {
	if l.secondary == nil {
		return nil
	}

	l.mu.Lock()
	data := TrainingData{
		Predictions: append([]Entry(nil), l.doc.Predictions...),
		Odds:        append([]Entry(nil), l.doc.Odds...),
		Matches:     append([]Entry(nil), l.doc.Matches...),
		Accuracy:    append([]AccuracyRecord(nil), l.doc.Accuracy...),
	}
	l.mu.Unlock()

	inserted := 0
	push := func(collection, id string, doc any) error {
		ok, err := l.secondary.InsertIfAbsent(ctx, collection, id, doc)
		if err != nil {
			return fmt.Errorf("sync %s/%s: %w", collection, id, err)
		}
		if ok {
			inserted++
		}
		return nil
	}

	for _, e := range data.Predictions {
		if err := push(collectionPredictions, e.ID, e); err != nil {
			return err
		}
	}
	for _, e := range data.Odds {
		if err := push(collectionOdds, e.ID, e); err != nil {
			return err
		}
	}
	for _, e := range data.Matches {
		if err := push(collectionMatches, e.ID, e); err != nil {
			return err
		}
	}
	for _, r := range data.Accuracy {
		if err := push(collectionAccuracy, r.ID, r); err != nil {
			return err
		}
	}

	l.logger.Info("secondary store synced",
		zap.Int("inserted", inserted),
		zap.Int("total", len(data.Predictions)+len(data.Odds)+len(data.Matches)+len(data.Accuracy)))
	return nil
}

// persist rewrites the whole document. The temp-file rename keeps the
// previous document intact if the process dies mid-write.
func (l *Log) persist() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results log: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write results log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace results log: %w", err)
	}
	return nil
}

// writeSecondary mirrors an entry into the secondary store. Failure is
// logged and swallowed.
func (l *Log) writeSecondary(ctx context.Context, collection, id string, doc any) {
	if l.secondary == nil {
		return
	}
	if err := l.secondary.Insert(ctx, collection, id, doc); err != nil {
		if l.metrics != nil {
			l.metrics.SecondaryStoreErrors.Inc()
		}
		l.logger.Warn("secondary store write failed",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
	}
}

func (l *Log) entriesFor(typ EntryType) *[]Entry {
	switch typ {
	case TypeOdds:
		return &l.doc.Odds
	case TypeMatch:
		return &l.doc.Matches
	default:
		return &l.doc.Predictions
	}
}

func collectionFor(typ EntryType) string {
	switch typ {
	case TypeOdds:
		return collectionOdds
	case TypeMatch:
		return collectionMatches
	default:
		return collectionPredictions
	}
}
