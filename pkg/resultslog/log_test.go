package resultslog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// fakeStore records inserts in memory and can be told to fail.
type fakeStore struct {
	docs map[string]map[string]any
	fail bool

	inserts         int
	conditionalHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]map[string]any)}
}

func (f *fakeStore) Insert(_ context.Context, collection, id string, doc any) error {
	if f.fail {
		return errors.New("store offline")
	}
	f.inserts++
	f.collection(collection)[id] = doc
	return nil
}

func (f *fakeStore) InsertIfAbsent(_ context.Context, collection, id string, doc any) (bool, error) {
	if f.fail {
		return false, errors.New("store offline")
	}
	c := f.collection(collection)
	if _, ok := c[id]; ok {
		f.conditionalHits++
		return false, nil
	}
	c[id] = doc
	return true, nil
}

func (f *fakeStore) Count(_ context.Context, collection string) (int64, error) {
	return int64(len(f.collection(collection))), nil
}

func (f *fakeStore) Find(_ context.Context, collection string, limit int) ([]json.RawMessage, error) {
	return nil, nil
}

func (f *fakeStore) Ping(_ context.Context) error {
	if f.fail {
		return errors.New("store offline")
	}
	return nil
}

func (f *fakeStore) collection(name string) map[string]any {
	if f.docs[name] == nil {
		f.docs[name] = make(map[string]any)
	}
	return f.docs[name]
}

func samplePrediction() feed.Record {
	return feed.Record{
		League:     "Premier League",
		HomeTeam:   "Arsenal",
		AwayTeam:   "Chelsea",
		Prediction: feed.PredictionHomeWin,
		Confidence: 72,
		Odds:       1.39,
		Source:     "mybets",
	}
}

func TestLogAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.json")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entry, err := log.LogPrediction(ctx, samplePrediction())
	if err != nil {
		t.Fatalf("log prediction: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected generated entry ID")
	}
	if _, err := log.LogOdds(ctx, OddsObservation{
		HomeTeam: "Arsenal", AwayTeam: "Chelsea", Bookmaker: "acme",
		HomeOdds: 1.39, DrawOdds: 4.2, AwayOdds: 6.5,
	}); err != nil {
		t.Fatalf("log odds: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	data := reloaded.GetTrainingData()
	if len(data.Predictions) != 1 || len(data.Odds) != 1 {
		t.Fatalf("got %d predictions, %d odds after reload, want 1 and 1",
			len(data.Predictions), len(data.Odds))
	}

	var rec feed.Record
	if err := json.Unmarshal(data.Predictions[0].Payload, &rec); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if rec.HomeTeam != "Arsenal" || rec.Confidence != 72 {
		t.Fatalf("payload round trip mismatch: %+v", rec)
	}
	if reloaded.doc.Metadata.TotalLogs != 2 {
		t.Fatalf("total_logs = %d, want 2", reloaded.doc.Metadata.TotalLogs)
	}
}

func TestAccuracyStatsEmpty(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "results.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	stats := log.GetAccuracyStats()
	if stats.Total != 0 || stats.Correct != 0 || stats.Incorrect != 0 || stats.AccuracyPercentage != 0 {
		t.Fatalf("empty stats not zero-valued: %+v", stats)
	}
}

func TestLogResultAndStats(t *testing.T) {
	ctx := context.Background()
	log, err := Open(filepath.Join(t.TempDir(), "results.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	first, err := log.LogPrediction(ctx, samplePrediction())
	if err != nil {
		t.Fatalf("log prediction: %v", err)
	}
	away := samplePrediction()
	away.Prediction = feed.PredictionAwayWin
	second, err := log.LogPrediction(ctx, away)
	if err != nil {
		t.Fatalf("log prediction: %v", err)
	}
	third, err := log.LogPrediction(ctx, samplePrediction())
	if err != nil {
		t.Fatalf("log prediction: %v", err)
	}

	correct, err := log.LogResult(ctx, first.ID, "home win")
	if err != nil {
		t.Fatalf("log result: %v", err)
	}
	if !correct.Correct {
		t.Fatal("case-insensitive outcome match should score correct")
	}
	if correct.Match != "Arsenal vs Chelsea" {
		t.Fatalf("match label = %q", correct.Match)
	}
	if correct.Odds != 1.39 {
		t.Fatalf("odds not carried from prediction: %v", correct.Odds)
	}

	if _, err := log.LogResult(ctx, second.ID, feed.PredictionHomeWin); err != nil {
		t.Fatalf("log result: %v", err)
	}
	if _, err := log.LogResult(ctx, third.ID, feed.PredictionHomeWin); err != nil {
		t.Fatalf("log result: %v", err)
	}

	stats := log.GetAccuracyStats()
	if stats.Total != 3 || stats.Correct != 2 || stats.Incorrect != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AccuracyPercentage != 66.67 {
		t.Fatalf("accuracy = %v, want 66.67", stats.AccuracyPercentage)
	}
}

func TestLogResultUnknownPrediction(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "results.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := log.LogResult(context.Background(), "no-such-id", feed.PredictionDraw); err == nil {
		t.Fatal("expected error for unknown prediction ID")
	}
}

func TestSecondaryFailureDoesNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.json")
	store := newFakeStore()
	store.fail = true

	log, err := Open(path, WithSecondary(store))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := log.LogPrediction(ctx, samplePrediction()); err != nil {
		t.Fatalf("append must succeed despite secondary failure: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := len(reloaded.GetTrainingData().Predictions); got != 1 {
		t.Fatalf("primary store lost the entry: %d predictions", got)
	}
}

func TestDualWriteReachesSecondary(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	log, err := Open(filepath.Join(t.TempDir(), "results.json"), WithSecondary(store))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entry, err := log.LogPrediction(ctx, samplePrediction())
	if err != nil {
		t.Fatalf("log prediction: %v", err)
	}
	if _, ok := store.collection(collectionPredictions)[entry.ID]; !ok {
		t.Fatal("entry missing from secondary store")
	}
}

func TestSyncSecondaryIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.json")

	// Build up the primary store without a secondary attached.
	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pred, err := log.LogPrediction(ctx, samplePrediction())
	if err != nil {
		t.Fatalf("log prediction: %v", err)
	}
	if _, err := log.LogMatch(ctx, samplePrediction()); err != nil {
		t.Fatalf("log match: %v", err)
	}
	if _, err := log.LogResult(ctx, pred.ID, feed.PredictionHomeWin); err != nil {
		t.Fatalf("log result: %v", err)
	}

	store := newFakeStore()
	synced, err := Open(path, WithSecondary(store))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := synced.SyncSecondary(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	total := len(store.collection(collectionPredictions)) +
		len(store.collection(collectionMatches)) +
		len(store.collection(collectionAccuracy))
	if total != 3 {
		t.Fatalf("synced %d documents, want 3", total)
	}

	if err := synced.SyncSecondary(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if store.conditionalHits != 3 {
		t.Fatalf("second sync should skip all 3 existing docs, skipped %d", store.conditionalHits)
	}
}

func TestGetRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	log, err := Open(filepath.Join(t.TempDir(), "results.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := log.LogPrediction(ctx, samplePrediction()); err != nil {
			t.Fatalf("log prediction: %v", err)
		}
	}

	recent := log.GetRecent(2, TypePrediction)
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
	if recent[1].Timestamp.After(recent[0].Timestamp) {
		t.Fatal("entries not ordered newest first")
	}

	merged := log.GetRecent(0, "")
	if len(merged) != 3 {
		t.Fatalf("merged fetch returned %d entries, want 3", len(merged))
	}
}
