package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/carpool-companion/internal/models"
)

// ErrNotFound is returned when a profile, ride or match id is unknown.
var ErrNotFound = errors.New("not found")

// OfferFilter narrows the open-offer listing. Zero values match everything.
type OfferFilter struct {
	Origin      string     // substring of the pickup location, case-insensitive
	Destination string     // substring of the dropoff location, case-insensitive
	Day         *time.Time // departures within [Day, Day+24h)
}

// Store defines persistence for profiles, rides and matches. Rows are owned
// by the backing store; callers never cache them past a request.
type Store interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	TopProfilesByCoins(ctx context.Context, limit int) ([]models.Profile, error)

	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	UpdateRideStatus(ctx context.Context, id string, status models.RideStatus) error
	ListOpenOffers(ctx context.Context, f OfferFilter) ([]models.Ride, error)
	RidesByUser(ctx context.Context, userID string) ([]models.Ride, error)
	// CountCompletedRides counts completed rides for one user, or for the
	// whole platform when userID is empty.
	CountCompletedRides(ctx context.Context, userID string) (int, error)

	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	UpdateMatchStatus(ctx context.Context, id string, status models.MatchStatus) error
	MatchesByUser(ctx context.Context, userID string) ([]models.Match, error)
}

// MemoryStore is the in-process Store used in tests and when PG_DSN is
// unset.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
	rides    map[string]*models.Ride
	matches  map[string]*models.Match
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.Profile),
		rides:    make(map[string]*models.Ride),
		matches:  make(map[string]*models.Match),
	}
}

func (m *MemoryStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) UpdateProfile(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	cp.UpdatedAt = time.Now()
	m.profiles[p.ID] = &cp
	return nil
}

func (m *MemoryStore) TopProfilesByCoins(ctx context.Context, limit int) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EcoCoins > out[j].EcoCoins })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateRide(ctx context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) UpdateRideStatus(ctx context.Context, id string, status models.RideStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListOpenOffers(ctx context.Context, f OfferFilter) ([]models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.Kind != models.KindOffer || r.Status != models.RideActive {
			continue
		}
		if f.Origin != "" && !strings.Contains(strings.ToLower(r.PickupLocation), strings.ToLower(f.Origin)) {
			continue
		}
		if f.Destination != "" && !strings.Contains(strings.ToLower(r.DropoffLocation), strings.ToLower(f.Destination)) {
			continue
		}
		if f.Day != nil {
			day := f.Day.Truncate(24 * time.Hour)
			if r.DepartureTime.Before(day) || !r.DepartureTime.Before(day.Add(24*time.Hour)) {
				continue
			}
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RidesByUser(ctx context.Context, userID string) ([]models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Ride
	for _, r := range m.rides {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CountCompletedRides(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.rides {
		if r.Status != models.RideCompleted {
			continue
		}
		if userID == "" || r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateMatch(ctx context.Context, mt *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mt
	m.matches[mt.ID] = &cp
	return nil
}

func (m *MemoryStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mt
	return &cp, nil
}

func (m *MemoryStore) UpdateMatchStatus(ctx context.Context, id string, status models.MatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.matches[id]
	if !ok {
		return ErrNotFound
	}
	mt.Status = status
	mt.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MatchesByUser(ctx context.Context, userID string) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Match
	for _, mt := range m.matches {
		if mt.RiderID == userID || mt.DriverID == userID {
			out = append(out, *mt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
