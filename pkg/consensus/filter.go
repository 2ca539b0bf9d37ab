package consensus

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// Filter is applied to the merged consensus view, never to raw per-source
// records, so filtering semantics do not depend on which sources happened
// to contribute. MinConfidence and MaxOdds are interchangeable bounds: the
// odds ceiling is converted to a confidence floor and the stricter of the
// two wins.
type Filter struct {
	MinConfidence int
	MaxOdds       float64
	Prediction    string
	League        string
}

// confidenceFloor resolves the effective confidence bound. An out-of-domain
// MaxOdds is rejected here rather than silently clamped.
func (f Filter) confidenceFloor() (int, error) {
	floor := f.MinConfidence
	if f.MaxOdds != 0 {
		pct, err := feed.ConfidenceFromOdds(f.MaxOdds)
		if err != nil {
			return 0, err
		}
		if pct > floor {
			floor = pct
		}
	}
	return floor, nil
}

// keep reports whether a merged match passes the filter.
func (f Filter) keep(m Match, minConfidence int) bool {
	if minConfidence > 0 && m.Consensus.AvgConfidence < float64(minConfidence) {
		return false
	}
	if f.Prediction != "" && !strings.EqualFold(f.Prediction, m.Consensus.Prediction) {
		return false
	}
	if f.League != "" && !matchInLeague(m, f.League) {
		return false
	}
	return true
}

func matchInLeague(m Match, league string) bool {
	needle := strings.ToLower(league)
	if strings.Contains(strings.ToLower(m.League), needle) {
		return true
	}
	for _, rec := range m.Records {
		if strings.Contains(strings.ToLower(rec.League), needle) {
			return true
		}
	}
	return false
}

// Summary holds aggregate statistics over a consensus view.
type Summary struct {
	TotalMatches     int            `json:"total_matches"`
	AvgConfidence    float64        `json:"avg_confidence"`
	HighConfidence   int            `json:"high_confidence_count"`   // >= 85
	MediumConfidence int            `json:"medium_confidence_count"` // 70..84
	LowConfidence    int            `json:"low_confidence_count"`    // < 70
	ByPrediction     map[string]int `json:"by_prediction"`
	BySource         map[string]int `json:"by_source"`
	Sources          []string       `json:"sources"`
}

// Summarize computes summary statistics over merged matches.
func Summarize(matches []Match) Summary {
	s := Summary{
		TotalMatches: len(matches),
		ByPrediction: make(map[string]int),
		BySource:     make(map[string]int),
	}

	sum := decimal.Zero
	for _, m := range matches {
		conf := m.Consensus.AvgConfidence
		sum = sum.Add(decimal.NewFromFloat(conf))
		switch {
		case conf >= 85:
			s.HighConfidence++
		case conf >= 70:
			s.MediumConfidence++
		default:
			s.LowConfidence++
		}
		if m.Consensus.Prediction != "" {
			s.ByPrediction[m.Consensus.Prediction]++
		}
		for _, rec := range m.Records {
			s.BySource[rec.Source]++
		}
	}

	if len(matches) > 0 {
		s.AvgConfidence = sum.Div(decimal.NewFromInt(int64(len(matches)))).Round(2).InexactFloat64()
	}
	for name := range s.BySource {
		s.Sources = append(s.Sources, name)
	}
	sort.Strings(s.Sources)
	return s
}
