package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/magajico/oddsfeed/pkg/feed"
)

const myBetsFixture = `<!DOCTYPE html>
<html><body>
<div class="picks">
  <a href="/match-prediction-analysis/liverpool-vs-everton">
    15:00 Liverpool Vs Everton Liverpool have won their last five home games 1 (86%)
  </a>
  <a href="/match-prediction-analysis/fulham-vs-brentford">
    17:30 Fulham Vs Brentford We expect a tight derby X (54%)
  </a>
  <a href="/match-prediction-analysis/getafe-vs-real-madrid">
    20:00 Getafe Vs Real Madrid 2 (78%)
  </a>
  <a href="/somewhere-else">Unrelated link with no pick</a>
</div>
</body></html>`

func myBetsServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMyBetsFetchParsesPicks(t *testing.T) {
	srv := myBetsServer(t, myBetsFixture, http.StatusOK)
	adapter := NewMyBets(NewClient(), WithMyBetsBaseURL(srv.URL))

	records, err := adapter.Fetch(context.Background(), feed.Query{Sport: "soccer"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(records), records)
	}

	tests := []struct {
		home, away, prediction, gameTime string
		confidence                       int
		odds                             float64
	}{
		{"Liverpool", "Everton", feed.PredictionHomeWin, "15:00", 86, 1.16},
		{"Fulham", "Brentford", feed.PredictionDraw, "17:30", 54, 1.85},
		{"Getafe", "Real Madrid", feed.PredictionAwayWin, "20:00", 78, 1.28},
	}
	for i, tt := range tests {
		rec := records[i]
		if rec.HomeTeam != tt.home || rec.AwayTeam != tt.away {
			t.Errorf("record %d teams = %q vs %q, want %q vs %q",
				i, rec.HomeTeam, rec.AwayTeam, tt.home, tt.away)
		}
		if rec.Prediction != tt.prediction {
			t.Errorf("record %d prediction = %q, want %q", i, rec.Prediction, tt.prediction)
		}
		if rec.GameTime != tt.gameTime {
			t.Errorf("record %d game time = %q, want %q", i, rec.GameTime, tt.gameTime)
		}
		if rec.Confidence != tt.confidence {
			t.Errorf("record %d confidence = %d, want %d", i, rec.Confidence, tt.confidence)
		}
		if rec.Odds != tt.odds {
			t.Errorf("record %d odds = %v, want %v", i, rec.Odds, tt.odds)
		}
		if rec.Source != adapter.Name() {
			t.Errorf("record %d source = %q", i, rec.Source)
		}
	}
}

func TestMyBetsMinConfidenceDropsAtSource(t *testing.T) {
	srv := myBetsServer(t, myBetsFixture, http.StatusOK)
	adapter := NewMyBets(NewClient(), WithMyBetsBaseURL(srv.URL), WithMyBetsMinConfidence(75))

	records, err := adapter.Fetch(context.Background(), feed.Query{Sport: "soccer"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records above 75%%, want 2", len(records))
	}
}

func TestMyBetsMaxOddsMatchesConfidenceCut(t *testing.T) {
	srv := myBetsServer(t, myBetsFixture, http.StatusOK)

	// floor(100/1.33) = 75; both bounds must select the same two picks.
	byOdds := NewMyBets(NewClient(), WithMyBetsBaseURL(srv.URL), WithMyBetsMaxOdds(1.33))
	records, err := byOdds.Fetch(context.Background(), feed.Query{Sport: "soccer"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records under odds 1.33, want 2", len(records))
	}
}

func TestMyBetsEmptyPageIsNotAnError(t *testing.T) {
	srv := myBetsServer(t, "<html><body><p>No picks today</p></body></html>", http.StatusOK)
	adapter := NewMyBets(NewClient(), WithMyBetsBaseURL(srv.URL))

	records, err := adapter.Fetch(context.Background(), feed.Query{Sport: "soccer"})
	if err != nil {
		t.Fatalf("empty page must not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records from empty page", len(records))
	}
}

func TestMyBetsServerErrorIsUnavailable(t *testing.T) {
	srv := myBetsServer(t, "upstream exploded", http.StatusInternalServerError)
	adapter := NewMyBets(NewClient(), WithMyBetsBaseURL(srv.URL))

	_, err := adapter.Fetch(context.Background(), feed.Query{Sport: "soccer"})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("got %v, want ErrSourceUnavailable", err)
	}
}

func TestMyBetsPageURL(t *testing.T) {
	adapter := NewMyBets(NewClient(), WithMyBetsBaseURL("https://example.test"))
	tests := []struct {
		date string
		want string
	}{
		{"", "https://example.test/recommended-soccer-predictions/"},
		{"today", "https://example.test/recommended-soccer-predictions/"},
		{"tomorrow", "https://example.test/recommended-soccer-predictions/tomorrow/"},
		{"2026-08-30", "https://example.test/recommended-soccer-predictions/2026-08-30/"},
	}
	for _, tt := range tests {
		if got := adapter.pageURL(feed.Query{Date: tt.date}); got != tt.want {
			t.Errorf("pageURL(%q) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestWithTimeoutConvertsDeadlineToUnavailable(t *testing.T) {
	slow := Func{
		AdapterName: "slow",
		FetchFunc: func(ctx context.Context, _ feed.Query) ([]feed.Record, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	adapter := WithTimeout(slow, 10*time.Millisecond)
	_, err := adapter.Fetch(context.Background(), feed.Query{Sport: "soccer"})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("got %v, want ErrSourceUnavailable", err)
	}
}
