package geo

import (
	"math"

	"github.com/example/carpool-companion/internal/models"
)

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// NearestOffers returns up to limit rides ordered by pickup distance from
// origin, selected with a partial selection sort.
func NearestOffers(origin models.Coord, rides []models.Ride, limit int) []models.Ride {
	type pair struct {
		r    models.Ride
		dist float64
	}
	arr := make([]pair, 0, len(rides))
	for _, r := range rides {
		dist := Haversine(origin.Lat, origin.Lon, r.Pickup.Lat, r.Pickup.Lon)
		arr = append(arr, pair{r, dist})
	}
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.Ride, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].r)
	}
	return out
}
