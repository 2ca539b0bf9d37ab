package consensus

import (
	"testing"

	"github.com/magajico/oddsfeed/pkg/feed"
)

func TestNormalizeTeam(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Chelsea FC", "chelsea"},
		{"  Inter   Milan ", "inter milan"},
		{"Atlético Madrid", "atletico madrid"},
		{"Swansea City AFC", "swansea city"},
		{"CHELSEA", "chelsea"},
	}
	for _, tt := range tests {
		if got := normalizeTeam(tt.in); got != tt.want {
			t.Errorf("normalizeTeam(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTeamsEquivalent(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"inter milan", "inter", true},
		{"chelsea", "chelsea", true},
		{"ac milan", "milan", true},
		{"arsenal", "chelsea", false},
		{"fc", "barcelona", false}, // too short to bridge
		{"", "chelsea", false},
	}
	for _, tt := range tests {
		if got := teamsEquivalent(tt.a, tt.b); got != tt.want {
			t.Errorf("teamsEquivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func rec(source, home, away, prediction string, confidence int) contribution {
	order := map[string]int{"alpha": 0, "beta": 1, "gamma": 2}[source]
	return contribution{
		order: order,
		record: feed.Record{
			Source:     source,
			HomeTeam:   home,
			AwayTeam:   away,
			Prediction: prediction,
			Confidence: confidence,
		},
	}
}

func TestMergeSameMatchAcrossNamingVariants(t *testing.T) {
	matches := mergeContributions([]contribution{
		rec("alpha", "Inter Milan", "AC Milan", feed.PredictionHomeWin, 70),
		rec("beta", "Inter", "AC Milan FC", feed.PredictionHomeWin, 68),
	})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 merged match", len(matches))
	}
	if len(matches[0].Records) != 2 {
		t.Fatalf("merged match holds %d records, want 2", len(matches[0].Records))
	}
	// Display names come from the first contribution.
	if matches[0].HomeTeam != "Inter Milan" {
		t.Fatalf("home team label = %q", matches[0].HomeTeam)
	}
}

func TestSingleSharedTeamStaysDistinct(t *testing.T) {
	matches := mergeContributions([]contribution{
		rec("alpha", "Chelsea", "Arsenal", feed.PredictionHomeWin, 70),
		rec("beta", "Chelsea", "Unrelated FC", feed.PredictionHomeWin, 70),
	})
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 distinct matches", len(matches))
	}
}

func TestMergeHandlesSwappedSides(t *testing.T) {
	matches := mergeContributions([]contribution{
		rec("alpha", "Arsenal", "Chelsea", feed.PredictionHomeWin, 70),
		rec("beta", "Chelsea FC", "Arsenal FC", feed.PredictionAwayWin, 66),
	})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want sides-swapped records merged into 1", len(matches))
	}
}

func TestConsensusMajorityAndAverages(t *testing.T) {
	matches := mergeContributions([]contribution{
		rec("alpha", "Arsenal", "Chelsea", feed.PredictionHomeWin, 72),
		rec("beta", "Arsenal", "Chelsea", feed.PredictionHomeWin, 65),
		rec("gamma", "Arsenal", "Chelsea", feed.PredictionDraw, 50),
	})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	c := matches[0].Consensus
	if c.Prediction != feed.PredictionHomeWin {
		t.Fatalf("prediction = %q, want %q", c.Prediction, feed.PredictionHomeWin)
	}
	if c.AvgConfidence != 62.33 {
		t.Fatalf("avg confidence = %v, want 62.33", c.AvgConfidence)
	}
	if c.AgreementPct != 66.67 {
		t.Fatalf("agreement = %v, want 66.67", c.AgreementPct)
	}
}

func TestConsensusTieBreaksOnAdapterOrder(t *testing.T) {
	// One vote each; the label seen by the earliest adapter wins.
	matches := mergeContributions([]contribution{
		rec("beta", "Arsenal", "Chelsea", feed.PredictionDraw, 60),
		rec("alpha", "Arsenal", "Chelsea", feed.PredictionHomeWin, 60),
	})
	if got := matches[0].Consensus.Prediction; got != feed.PredictionHomeWin {
		t.Fatalf("tie broke to %q, want the earliest adapter's %q", got, feed.PredictionHomeWin)
	}
}

func TestConsensusDerivesConfidenceFromOdds(t *testing.T) {
	oddsOnly := contribution{order: 1, record: feed.Record{
		Source:     "beta",
		HomeTeam:   "Arsenal",
		AwayTeam:   "Chelsea",
		Prediction: feed.PredictionHomeWin,
		Odds:       2.0, // floor(100/2.0) = 50
	}}
	matches := mergeContributions([]contribution{
		rec("alpha", "Arsenal", "Chelsea", feed.PredictionHomeWin, 70),
		oddsOnly,
	})
	if got := matches[0].Consensus.AvgConfidence; got != 60 {
		t.Fatalf("avg confidence = %v, want 60 (70 and derived 50)", got)
	}
}
