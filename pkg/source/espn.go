package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/magajico/oddsfeed/pkg/classifier"
	"github.com/magajico/oddsfeed/pkg/feed"
)

// DefaultESPNBaseURL is the ESPN site API root.
const DefaultESPNBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

// espnSportPaths maps our sport names to ESPN scoreboard paths.
var espnSportPaths = map[string]string{
	"soccer": "soccer/eng.1",
	"nfl":    "football/nfl",
	"nba":    "basketball/nba",
	"mlb":    "baseball/mlb",
}

// ESPN fetches scoreboard data from the ESPN site API. The scoreboard
// carries no predictions of its own; when a classifier is configured each
// record is enriched with a predicted outcome and confidence.
type ESPN struct {
	client  *Client
	baseURL string
	model   classifier.Classifier
}

// NewESPN creates the ESPN scoreboard adapter. baseURL defaults to the live
// API; model may be nil, in which case records stay score-only.
func NewESPN(client *Client, baseURL string, model classifier.Classifier) *ESPN {
	if client == nil {
		client = NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultESPNBaseURL
	}
	return &ESPN{client: client, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

func (e *ESPN) Name() string { return "ESPN" }

// Scoreboard response shapes (only the fields we read).
type espnScoreboard struct {
	Leagues []struct {
		Name string `json:"name"`
	} `json:"leagues"`
	Events []espnEvent `json:"events"`
}

type espnEvent struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Competitions []struct {
		Status struct {
			Type struct {
				State       string `json:"state"`
				Description string `json:"description"`
			} `json:"type"`
		} `json:"status"`
		Competitors []struct {
			HomeAway string `json:"homeAway"`
			Score    string `json:"score"`
			Team     struct {
				DisplayName string `json:"displayName"`
			} `json:"team"`
		} `json:"competitors"`
	} `json:"competitions"`
}

// Fetch reads the scoreboard for the queried sport (default soccer).
func (e *ESPN) Fetch(ctx context.Context, q feed.Query) ([]feed.Record, error) {
	sport := strings.ToLower(q.Sport)
	if sport == "" {
		sport = "soccer"
	}
	path, ok := espnSportPaths[sport]
	if !ok {
		return nil, Unavailable(e.Name(), fmt.Errorf("unsupported sport %q", q.Sport))
	}

	var board espnScoreboard
	if err := e.client.GetJSON(ctx, e.baseURL+"/"+path+"/scoreboard", nil, &board); err != nil {
		return nil, Unavailable(e.Name(), err)
	}

	league := "ESPN " + strings.ToUpper(sport)
	if len(board.Leagues) > 0 && board.Leagues[0].Name != "" {
		league = board.Leagues[0].Name
	}

	records := make([]feed.Record, 0, len(board.Events))
	for _, event := range board.Events {
		if len(event.Competitions) == 0 {
			continue
		}
		comp := event.Competitions[0]
		if len(comp.Competitors) < 2 {
			continue
		}

		rec := feed.Record{
			League:   league,
			GameTime: event.Date,
			Status:   espnStatus(comp.Status.Type.State),
			Source:   e.Name(),
		}
		for _, c := range comp.Competitors {
			score, _ := strconv.Atoi(c.Score)
			if c.HomeAway == "home" {
				rec.HomeTeam = c.Team.DisplayName
				rec.HomeScore = score
			} else {
				rec.AwayTeam = c.Team.DisplayName
				rec.AwayScore = score
			}
		}
		if rec.HomeTeam == "" || rec.AwayTeam == "" {
			continue
		}

		e.enrich(&rec)
		records = append(records, rec)
	}
	return records, nil
}

// enrich attaches a classifier prediction to a score-only record.
func (e *ESPN) enrich(rec *feed.Record) {
	if e.model == nil {
		return
	}
	class, probs, err := e.model.Predict(classifier.EstimateFeatures(*rec))
	if err != nil {
		return
	}
	rec.Prediction = feed.PredictionForClass(class)
	rec.Confidence = int(probs[class] * 100)
	rec.DeriveMissing()
}

func espnStatus(state string) string {
	switch state {
	case "in":
		return "live"
	case "post":
		return "finished"
	default:
		return "scheduled"
	}
}
