package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// DefaultStatareaBaseURL is the statarea.com predictions page.
const DefaultStatareaBaseURL = "https://www.statarea.com"

var (
	statareaTeamsRe = regexp.MustCompile(`(?i)^(.+?)\s+vs\s+(.+)$`)
	statareaOddsRe  = regexp.MustCompile(`(\d+\.\d+)`)
	statareaScoreRe = regexp.MustCompile(`^\d+\s*-\s*\d+$`)
)

// Statarea scrapes prediction tables from statarea.com. The site publishes
// a tip, a predicted score and decimal odds per match; confidence is implied
// from the odds.
type Statarea struct {
	client  *Client
	baseURL string
}

// NewStatarea creates the statarea.com adapter. baseURL is optional and
// defaults to the live site.
func NewStatarea(client *Client, baseURL string) *Statarea {
	if client == nil {
		client = NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultStatareaBaseURL
	}
	return &Statarea{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *Statarea) Name() string { return "Statarea" }

// Fetch scrapes the predictions table.
func (s *Statarea) Fetch(ctx context.Context, q feed.Query) ([]feed.Record, error) {
	doc, err := s.client.GetDocument(ctx, s.baseURL+"/predictions", nil)
	if err != nil {
		return nil, Unavailable(s.Name(), err)
	}

	records := make([]feed.Record, 0)
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if rec, ok := s.parseRow(row); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

// parseRow reads one table row: teams, predicted score, tip, odds.
func (s *Statarea) parseRow(row *goquery.Selection) (feed.Record, bool) {
	cells := row.Find("td")
	if cells.Length() < 4 {
		return feed.Record{}, false
	}

	teams := statareaTeamsRe.FindStringSubmatch(strings.TrimSpace(cells.Eq(0).Text()))
	if teams == nil {
		return feed.Record{}, false
	}

	score := strings.TrimSpace(cells.Eq(1).Text())
	if !statareaScoreRe.MatchString(score) {
		score = ""
	}

	odds := 0.0
	if o := statareaOddsRe.FindStringSubmatch(cells.Eq(3).Text()); o != nil {
		odds, _ = strconv.ParseFloat(o[1], 64)
	}

	rec := feed.Record{
		HomeTeam:       strings.TrimSpace(teams[1]),
		AwayTeam:       strings.TrimSpace(teams[2]),
		Status:         "scheduled",
		Prediction:     statareaTip(strings.TrimSpace(cells.Eq(2).Text()), score),
		PredictedScore: score,
		Odds:           odds,
		Source:         s.Name(),
	}
	rec.DeriveMissing()
	return rec, true
}

// statareaTip resolves the tip column to a label, falling back to the
// predicted score when the column is ambiguous.
func statareaTip(tip, score string) string {
	lower := strings.ToLower(tip)
	switch {
	case strings.Contains(lower, "1") || strings.Contains(lower, "home"):
		return feed.PredictionHomeWin
	case strings.Contains(lower, "x") || strings.Contains(lower, "draw"):
		return feed.PredictionDraw
	case strings.Contains(lower, "2") || strings.Contains(lower, "away"):
		return feed.PredictionAwayWin
	}

	parts := strings.SplitN(score, "-", 2)
	if len(parts) != 2 {
		return ""
	}
	home, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	away, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	switch {
	case home > away:
		return feed.PredictionHomeWin
	case home == away:
		return feed.PredictionDraw
	default:
		return feed.PredictionAwayWin
	}
}
