// Package eco derives the gamification aggregates: eco coins (one per five
// completed shared rides) and the CO2-saved estimate. Balances are never
// updated incrementally; they are recomputed from the ride and match rows
// and persisted on every read, so a Reconcile call is always safe to repeat.
package eco

import (
	"context"
	"fmt"

	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/observability"
	"github.com/example/carpool-companion/internal/storage"
)

const (
	ridesPerCoin = 5
	// Fixed per-ride assumptions: 20 km at 0.12 kg CO2 per km. Not derived
	// from actual route distance.
	assumedRideKm  = 20.0
	emissionsPerKm = 0.12
)

// Wallet is the snapshot returned to the wallet view.
type Wallet struct {
	UserID              string  `json:"user_id"`
	EcoCoins            int     `json:"eco_coins"`
	SharedRides         int     `json:"shared_rides"`
	RemainingToNextCoin int     `json:"remaining_to_next_coin"`
	TotalRides          int     `json:"total_rides"`
	CO2SavedKg          float64 `json:"co2_saved"`
}

type Service struct {
	Store storage.Store
}

// CoinBalance converts a shared-ride count into coins earned and rides
// remaining until the next coin. At any multiple of five (including zero)
// the remaining value is a full five, never zero.
func CoinBalance(sharedRides int) (coins, remaining int) {
	if sharedRides < 0 {
		sharedRides = 0
	}
	coins = sharedRides / ridesPerCoin
	remaining = ridesPerCoin - sharedRides%ridesPerCoin
	return coins, remaining
}

// CO2Saved estimates kilograms of CO2 avoided by completedRides.
func CO2Saved(completedRides int) float64 {
	if completedRides < 0 {
		return 0
	}
	return float64(completedRides) * assumedRideKm * emissionsPerKm
}

// SharedRides counts the user's accepted or completed matches whose
// referenced ride is completed and whose rider and driver are distinct.
// A match moving accepted to completed keeps its credit; solo and
// self-matches never count.
func (s *Service) SharedRides(ctx context.Context, userID string) (int, error) {
	matches, err := s.Store.MatchesByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load matches: %w", err)
	}
	n := 0
	for _, m := range matches {
		if (m.Status != models.MatchAccepted && m.Status != models.MatchCompleted) || !m.Shared() {
			continue
		}
		ride, err := s.Store.GetRide(ctx, m.RideID)
		if err != nil {
			return 0, fmt.Errorf("load ride %s: %w", m.RideID, err)
		}
		if ride.Status == models.RideCompleted {
			n++
		}
	}
	return n, nil
}

// Wallet recomputes the user's eco aggregates and persists them to the
// profile before returning. The write-back on read keeps the cached profile
// columns honest without any event plumbing on the hot path.
func (s *Service) Wallet(ctx context.Context, userID string) (*Wallet, error) {
	shared, err := s.SharedRides(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed, err := s.Store.CountCompletedRides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count completed rides: %w", err)
	}

	coins, remaining := CoinBalance(shared)
	w := &Wallet{
		UserID:              userID,
		EcoCoins:            coins,
		SharedRides:         shared,
		RemainingToNextCoin: remaining,
		TotalRides:          completed,
		CO2SavedKg:          CO2Saved(completed),
	}

	profile, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	profile.EcoCoins = coins
	profile.TotalRides = completed
	profile.CO2SavedKg = w.CO2SavedKg
	if err := s.Store.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("persist wallet: %w", err)
	}
	observability.WalletRefreshes.Inc()
	return w, nil
}

// Reconcile recomputes and persists one user's balance. It is the
// idempotent form of the wallet refresh used by the event consumer.
func (s *Service) Reconcile(ctx context.Context, userID string) error {
	_, err := s.Wallet(ctx, userID)
	return err
}

// CommunityCO2 estimates total kilograms saved across all users.
func (s *Service) CommunityCO2(ctx context.Context) (float64, error) {
	total, err := s.Store.CountCompletedRides(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("count completed rides: %w", err)
	}
	return CO2Saved(total), nil
}

// Leaderboard returns the top profiles by coin balance.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.Store.TopProfilesByCoins(ctx, limit)
}
