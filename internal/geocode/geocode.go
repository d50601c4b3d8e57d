// Package geocode is a thin pass-through to a public Nominatim search
// endpoint, used for location autocomplete. Lookups are cached because the
// upstream service rate-limits aggressively.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultEndpoint = "https://nominatim.openstreetmap.org/search"
	minQueryLen     = 3
	maxSuggestions  = 5
)

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	PlaceID     int64   `json:"place_id"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Cache stores suggestion lists per query string.
type Cache interface {
	Get(ctx context.Context, query string) ([]Suggestion, bool)
	Set(ctx context.Context, query string, s []Suggestion)
}

type Service struct {
	Endpoint string
	Client   *http.Client
	Cache    Cache
}

func NewService(endpoint string, cache Cache) *Service {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Service{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}, Cache: cache}
}

// nominatim returns lat/lon as strings
type nominatimResult struct {
	PlaceID     int64   `json:"place_id"`
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Search returns up to five suggestions for the query. Queries shorter than
// three characters return nothing without touching the network, mirroring
// the client-side debounce guard.
func (s *Service) Search(ctx context.Context, query string) ([]Suggestion, error) {
	if len(query) < minQueryLen {
		return nil, nil
	}
	if s.Cache != nil {
		if hit, ok := s.Cache.Get(ctx, query); ok {
			return hit, nil
		}
	}

	u := fmt.Sprintf("%s?format=json&q=%s&limit=%d&addressdetails=1", s.Endpoint, url.QueryEscape(query), maxSuggestions)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode service returned %d", resp.StatusCode)
	}

	var raw []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	out := make([]Suggestion, 0, len(raw))
	for _, r := range raw {
		lat, _ := strconv.ParseFloat(r.Lat, 64)
		lon, _ := strconv.ParseFloat(r.Lon, 64)
		out = append(out, Suggestion{
			PlaceID:     r.PlaceID,
			DisplayName: r.DisplayName,
			Lat:         lat,
			Lon:         lon,
			Type:        r.Type,
			Importance:  r.Importance,
		})
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, query, out)
	}
	return out, nil
}
