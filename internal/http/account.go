package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/carpool-companion/internal/costcalc"
	"github.com/example/carpool-companion/internal/eco"
	"github.com/example/carpool-companion/internal/geocode"
	"github.com/example/carpool-companion/internal/storage"
)

const leaderboardLimit = 10

type walletResponse struct {
	*eco.Wallet
	Leaderboard []leaderboardEntry `json:"leaderboard"`
	CommunityKg float64            `json:"community_co2_saved"`
}

type leaderboardEntry struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	EcoCoins int    `json:"eco_coins"`
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	wallet, err := s.Eco.Wallet(r.Context(), user)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := walletResponse{Wallet: wallet}
	if top, err := s.Eco.Leaderboard(r.Context(), leaderboardLimit); err == nil {
		for _, p := range top {
			resp.Leaderboard = append(resp.Leaderboard, leaderboardEntry{
				UserID:   p.ID,
				FullName: p.FullName,
				EcoCoins: p.EcoCoins,
			})
		}
	}
	if kg, err := s.Eco.CommunityCO2(r.Context()); err == nil {
		resp.CommunityKg = kg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCostCompare(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DailyDistanceKm float64           `json:"daily_distance_km"`
		DaysPerWeek     int               `json:"days_per_week"`
		FuelType        costcalc.FuelType `json:"fuel_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmp, ok := costcalc.Compare(in.DailyDistanceKm, in.DaysPerWeek, in.FuelType)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "distance and days must be positive and fuel_type one of petrol, diesel, cng")
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	suggestions, err := s.Geocoder.Search(r.Context(), q)
	if err != nil {
		s.logger.Warn("geocode lookup failed", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, "geocoding service unavailable")
		return
	}
	if suggestions == nil {
		suggestions = []geocode.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if s.Payments == nil {
		writeError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	}
	p, err := s.Store.GetProfile(r.Context(), user)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p.IsPremium {
		writeError(w, http.StatusConflict, "already premium")
		return
	}

	chargeID, err := s.Payments.ChargePremium(r.Context(), user)
	if err != nil {
		s.logger.Error("premium charge failed", "user_id", user, "error", err)
		writeError(w, http.StatusPaymentRequired, "charge failed: "+err.Error())
		return
	}
	p.IsPremium = true
	if err := s.Store.UpdateProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    user,
		"is_premium": true,
		"charge_id":  chargeID,
	})
}
