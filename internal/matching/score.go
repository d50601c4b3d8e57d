package matching

import (
	"math"
	"time"

	"github.com/example/carpool-companion/internal/geo"
	"github.com/example/carpool-companion/internal/models"
)

// HeuristicScore rates an offer against a request without calling the AI
// service, using the same criteria the prompt describes: pickup proximity
// (5 km ideal) and departure time (±30 minute window). It backs the plain
// request-a-ride path, where a round-trip to the model is not worth it.
func HeuristicScore(req models.MatchRequest, offer models.Ride) int {
	score := 100.0

	distKm := geo.Haversine(req.Pickup.Lat, req.Pickup.Lon, offer.Pickup.Lat, offer.Pickup.Lon) / 1000
	if distKm > 5 {
		// lose 4 points per km beyond the ideal radius
		score -= (distKm - 5) * 4
	}

	if !req.DepartureTime.IsZero() && !offer.DepartureTime.IsZero() {
		gap := req.DepartureTime.Sub(offer.DepartureTime)
		if gap < 0 {
			gap = -gap
		}
		if gap > 30*time.Minute {
			// lose 1 point per minute outside the window
			score -= gap.Minutes() - 30
		}
	}

	return clampScore(math.Round(score))
}
