package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// DefaultMyBetsBaseURL is the mybets.today site root.
const DefaultMyBetsBaseURL = "https://www.mybets.today"

var (
	myBetsConfidenceRe = regexp.MustCompile(`\((\d{1,3})%\)`)
	myBetsTimeRe       = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)
	myBetsTipRe        = regexp.MustCompile(`([12X])\s*\(`)
	myBetsVsRe         = regexp.MustCompile(`(?i)\s+vs\s+`)
	// The away team runs up to the start of the editorial blurb that
	// follows it on the same line.
	myBetsBlurbRe = regexp.MustCompile(`(?i)\s+(have|has|won|will|are|were|despite|having|we expect|excellent)\b`)
)

// MyBets scrapes recommended soccer predictions from mybets.today. The site
// publishes confidence percentages; odds are implied via the converter.
type MyBets struct {
	client        *Client
	baseURL       string
	minConfidence int
}

// MyBetsOption configures the adapter.
type MyBetsOption func(*MyBets)

// WithMyBetsBaseURL overrides the site root (tests point it at a fixture
// server).
func WithMyBetsBaseURL(u string) MyBetsOption {
	return func(m *MyBets) { m.baseURL = strings.TrimRight(u, "/") }
}

// WithMyBetsMinConfidence drops picks below the given confidence at the
// source, before they enter the pipeline.
func WithMyBetsMinConfidence(pct int) MyBetsOption {
	return func(m *MyBets) { m.minConfidence = pct }
}

// WithMyBetsMaxOdds expresses the same cut as an odds ceiling; it is
// converted to a confidence floor so either bound selects the same picks.
func WithMyBetsMaxOdds(odds float64) MyBetsOption {
	return func(m *MyBets) {
		if pct, err := feed.ConfidenceFromOdds(odds); err == nil {
			m.minConfidence = pct
		}
	}
}

// NewMyBets creates the mybets.today adapter.
func NewMyBets(client *Client, opts ...MyBetsOption) *MyBets {
	if client == nil {
		client = NewClient()
	}
	m := &MyBets{client: client, baseURL: DefaultMyBetsBaseURL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MyBets) Name() string { return "MyBets.today" }

// Fetch scrapes the recommended-predictions page for the queried date.
func (m *MyBets) Fetch(ctx context.Context, q feed.Query) ([]feed.Record, error) {
	doc, err := m.client.GetDocument(ctx, m.pageURL(q), nil)
	if err != nil {
		return nil, Unavailable(m.Name(), err)
	}

	records := make([]feed.Record, 0)
	doc.Find(`a[href*="match-prediction-analysis"]`).Each(func(_ int, sel *goquery.Selection) {
		if rec, ok := m.parsePick(sel.Text()); ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

func (m *MyBets) pageURL(q feed.Query) string {
	base := m.baseURL + "/recommended-soccer-predictions/"
	switch strings.ToLower(q.Date) {
	case "", "today":
		return base
	case "tomorrow":
		return base + "tomorrow/"
	default:
		return base + q.Date + "/"
	}
}

// parsePick extracts one record from a pick line such as
// "15:00 Liverpool Vs Everton Liverpool have won their last five ... 1 (86%)".
func (m *MyBets) parsePick(text string) (feed.Record, bool) {
	text = strings.Join(strings.Fields(text), " ")

	conf := myBetsConfidenceRe.FindStringSubmatch(text)
	if conf == nil {
		return feed.Record{}, false
	}
	confidence, _ := strconv.Atoi(conf[1])
	if confidence <= 0 || confidence > 100 || confidence < m.minConfidence {
		return feed.Record{}, false
	}

	gameTime := ""
	if t := myBetsTimeRe.FindStringSubmatch(text); t != nil {
		gameTime = t[1]
		text = strings.TrimSpace(strings.TrimPrefix(text, t[1]))
	}

	loc := myBetsVsRe.FindStringIndex(text)
	if loc == nil {
		return feed.Record{}, false
	}
	home := strings.TrimSpace(text[:loc[0]])
	after := text[loc[1]:]

	away := after
	if blurb := myBetsBlurbRe.FindStringIndex(after); blurb != nil {
		away = after[:blurb[0]]
	}
	away = strings.TrimSpace(myBetsConfidenceRe.ReplaceAllString(away, ""))
	for _, tip := range []string{"1", "X", "2"} {
		away = strings.TrimSpace(strings.TrimSuffix(away, " "+tip))
	}
	away = strings.TrimSpace(strings.TrimSuffix(away, home))
	if home == "" || away == "" {
		return feed.Record{}, false
	}

	rec := feed.Record{
		HomeTeam:   home,
		AwayTeam:   away,
		GameTime:   gameTime,
		Status:     "scheduled",
		Prediction: tipLabel(text),
		Confidence: confidence,
		Source:     m.Name(),
	}
	rec.DeriveMissing()
	return rec, true
}

// tipLabel maps the 1X2 tip character to its full label.
func tipLabel(text string) string {
	tip := myBetsTipRe.FindStringSubmatch(text)
	if tip == nil {
		return ""
	}
	switch tip[1] {
	case "1":
		return feed.PredictionHomeWin
	case "X":
		return feed.PredictionDraw
	case "2":
		return feed.PredictionAwayWin
	}
	return ""
}
