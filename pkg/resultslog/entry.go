// Package resultslog is the append-only, dual-destination audit trail for
// prediction, odds and match observations, plus the post-hoc accuracy
// records an operator creates by comparing a stored prediction against a
// reported outcome. The primary store is a single JSON document rewritten
// on every append; a secondary document store, when configured, mirrors
// every entry on a best-effort basis and never affects the caller.
package resultslog

import (
	"encoding/json"
	"time"
)

// EntryType discriminates log entries.
type EntryType string

const (
	TypePrediction EntryType = "prediction"
	TypeOdds       EntryType = "odds"
	TypeMatch      EntryType = "match"
	TypeAccuracy   EntryType = "accuracy"
)

// Entry is one appended observation. Entries are never mutated or deleted
// by normal operation.
type Entry struct {
	ID        string          `json:"id"`
	Type      EntryType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// OddsObservation is the payload shape for TypeOdds entries.
type OddsObservation struct {
	HomeTeam  string  `json:"home_team"`
	AwayTeam  string  `json:"away_team"`
	League    string  `json:"league,omitempty"`
	Bookmaker string  `json:"bookmaker"`
	HomeOdds  float64 `json:"home_odds"`
	AwayOdds  float64 `json:"away_odds"`
	DrawOdds  float64 `json:"draw_odds,omitempty"`
}

// AccuracyRecord compares a stored prediction to the real outcome.
// Correct is computed once at creation and frozen; a later correction of
// the outcome does not rewrite history.
type AccuracyRecord struct {
	ID           string    `json:"id"`
	PredictionID string    `json:"prediction_id"`
	Match        string    `json:"match"`
	Predicted    string    `json:"predicted"`
	Actual       string    `json:"actual"`
	Correct      bool      `json:"correct"`
	Odds         float64   `json:"odds,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// AccuracyStats summarizes all accuracy records.
type AccuracyStats struct {
	Total              int     `json:"total"`
	Correct            int     `json:"correct"`
	Incorrect          int     `json:"incorrect"`
	AccuracyPercentage float64 `json:"accuracy_percentage"`
}

// TrainingData bundles every logged observation for model retraining.
type TrainingData struct {
	Predictions []Entry          `json:"predictions"`
	Odds        []Entry          `json:"odds"`
	Matches     []Entry          `json:"matches"`
	Accuracy    []AccuracyRecord `json:"accuracy"`
}

// metadata mirrors the document bookkeeping block.
type metadata struct {
	Created              time.Time `json:"created"`
	TotalLogs            int       `json:"total_logs"`
	TotalAccuracyRecords int       `json:"total_accuracy_records"`
}

// document is the full persisted state, rewritten on every append.
type document struct {
	Predictions []Entry          `json:"predictions"`
	Odds        []Entry          `json:"odds"`
	Matches     []Entry          `json:"matches"`
	Accuracy    []AccuracyRecord `json:"accuracy"`
	Metadata    metadata         `json:"metadata"`
}
