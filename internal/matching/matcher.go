// Package matching pairs ride requests with open offers. The heavy lifting
// is delegated to an external chat-completion service: we describe the
// matching criteria in a prompt, embed the candidates as JSON, and parse
// the model's reply as a scored array. A reply we cannot parse degrades to
// an empty result instead of failing the search.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/observability"
)

const systemPrompt = `You are a ride-matching assistant for CarpoolCompanion.
Your job is to analyze ride requests and match them with available ride offers based on:
1. Location proximity (within 5km is ideal)
2. Time compatibility (±30 minutes window)
3. Ride preferences and compatibility
4. Available seats

Return a JSON array of matched rides with compatibility scores (0-100).`

type Matcher struct {
	Client Client
}

// aiMatch is the shape the model is asked to return, one element per
// candidate it considers compatible.
type aiMatch struct {
	Ride  json.RawMessage `json:"ride"`
	Score float64         `json:"score"`
}

// Match sends the request and candidates to the completion service and
// returns candidates annotated with scores, best first. A non-JSON reply
// yields an empty slice and a nil error; transport and service failures
// are returned to the caller.
func (m *Matcher) Match(ctx context.Context, req models.MatchRequest, offers []models.Ride) ([]models.ScoredOffer, error) {
	if len(offers) == 0 {
		return nil, nil
	}
	candidates, err := json.MarshalIndent(offers, "", "  ")
	if err != nil {
		return nil, err
	}
	userPrompt := fmt.Sprintf(`Match this ride request:
- Pickup: %s (%f, %f)
- Dropoff: %s (%f, %f)
- Time: %s
- Preferences: %s

Available rides:
%s

Return only a JSON array of matches with scores.`,
		req.PickupLocation, req.Pickup.Lat, req.Pickup.Lon,
		req.DropoffLocation, req.Dropoff.Lat, req.Dropoff.Lon,
		req.DepartureTime.Format("2006-01-02 15:04"),
		orNone(req.Preferences), candidates)

	reply, err := m.Client.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, err
	}
	observability.AIMatchRequests.Inc()

	scored := parseScoredReply(reply, offers)
	if scored == nil {
		observability.AIMatchParseFailures.Inc()
		return []models.ScoredOffer{}, nil
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

// fenced or embedded JSON arrays; models habitually wrap output in markdown
var jsonArrayPattern = regexp.MustCompile(`(?s)\[[\s\S]*\]`)

// parseScoredReply maps the model's array back onto the candidate offers.
// The model echoes each ride object; we match it to a known offer by id so
// hallucinated rides are dropped. Returns nil when no array can be parsed.
func parseScoredReply(reply string, offers []models.Ride) []models.ScoredOffer {
	byID := make(map[string]models.Ride, len(offers))
	for _, o := range offers {
		byID[o.ID] = o
	}

	raw := reply
	var matches []aiMatch
	if err := json.Unmarshal([]byte(raw), &matches); err != nil {
		extracted := jsonArrayPattern.FindString(reply)
		if extracted == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(extracted), &matches); err != nil {
			return nil
		}
	}

	out := make([]models.ScoredOffer, 0, len(matches))
	for _, am := range matches {
		var echoed struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(am.Ride, &echoed); err != nil {
			continue
		}
		offer, ok := byID[echoed.ID]
		if !ok {
			continue
		}
		out = append(out, models.ScoredOffer{Ride: offer, Score: clampScore(am.Score)})
	}
	return out
}

func clampScore(s float64) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(s)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
