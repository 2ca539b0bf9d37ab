// Package feed defines the common record model shared by every prediction
// source, plus the confidence/odds conversion used to compare records across
// sources that price the same outcome differently.
package feed

import (
	"fmt"
	"strings"
)

// Prediction labels for the 1X2 market. Sources that publish market-specific
// labels (e.g. "Over 4.5 Goals") pass them through verbatim.
const (
	PredictionHomeWin = "Home Win"
	PredictionDraw    = "Draw"
	PredictionAwayWin = "Away Win"
)

// PredictionForClass maps a classifier class index to its 1X2 label.
// Unknown indices return an empty string.
func PredictionForClass(class int) string {
	switch class {
	case 0:
		return PredictionHomeWin
	case 1:
		return PredictionDraw
	case 2:
		return PredictionAwayWin
	default:
		return ""
	}
}

// Record is the normalized unit produced by every source adapter. Team and
// league strings carry source-specific spelling; GameTime is best-effort and
// not guaranteed parseable.
type Record struct {
	League         string  `json:"league,omitempty"`
	HomeTeam       string  `json:"home_team"`
	AwayTeam       string  `json:"away_team"`
	GameTime       string  `json:"game_time,omitempty"`
	Status         string  `json:"status,omitempty"`
	HomeScore      int     `json:"home_score,omitempty"`
	AwayScore      int     `json:"away_score,omitempty"`
	Prediction     string  `json:"prediction,omitempty"`
	PredictedScore string  `json:"predicted_score,omitempty"`
	Confidence     int     `json:"confidence,omitempty"` // percent, [0,100]
	Odds           float64 `json:"odds,omitempty"`       // decimal odds, >= 1.0
	Source         string  `json:"source"`
}

// DeriveMissing fills whichever of confidence/odds is absent from the other
// via the converter. A record may legitimately carry neither (score-only
// sources); that is left untouched.
func (r *Record) DeriveMissing() {
	if r.Confidence > 0 && r.Odds == 0 {
		if odds, err := OddsFromConfidence(r.Confidence); err == nil {
			r.Odds = odds
		}
	}
	if r.Odds >= MinDecimalOdds && r.Confidence == 0 {
		if pct, err := ConfidenceFromOdds(r.Odds); err == nil {
			r.Confidence = pct
		}
	}
}

// Query identifies what a caller is asking a source for. It doubles as the
// cache-key discriminator, so every field must round-trip through Key.
type Query struct {
	Sport  string `json:"sport,omitempty"`
	Date   string `json:"date,omitempty"` // "today", "tomorrow", or YYYY-MM-DD
	League string `json:"league,omitempty"`
}

// Key returns a canonical string form of the query.
func (q Query) Key() string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(q.Sport)),
		strings.ToLower(strings.TrimSpace(q.Date)),
		strings.ToLower(strings.TrimSpace(q.League)),
	}
	return strings.Join(parts, "|")
}

func (q Query) String() string {
	return fmt.Sprintf("sport=%s date=%s league=%s", q.Sport, q.Date, q.League)
}
