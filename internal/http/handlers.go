package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/carpool-companion/internal/lifecycle"
	"github.com/example/carpool-companion/internal/matching"
	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/observability"
	"github.com/example/carpool-companion/internal/storage"
)

// routeCaps limits the price drivers can ask on known corridors; anything
// else falls back to the default cap.
var routeCaps = map[string]float64{
	"noida->gurgaon": 100,
}

const (
	defaultPriceCap = 100.0
	maxPrice        = 1000.0
	maxSeats        = 8
	// placeholder compatibility score for direct ride requests that carry
	// no pickup details to score against
	defaultMatchScore = 85
)

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID       string             `json:"id"`
		FullName string             `json:"full_name"`
		Email    string             `json:"email"`
		Phone    string             `json:"phone"`
		Prefs    models.Preferences `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.FullName == "" || in.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "full_name and email are required")
		return
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := time.Now()
	p := &models.Profile{
		ID:          in.ID,
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		Preferences: in.Prefs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.CreateProfile(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetProfile(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createRideRequest struct {
	Kind            models.RideKind `json:"type"`
	PickupLocation  string          `json:"pickup_location"`
	Pickup          models.Coord    `json:"pickup"`
	DropoffLocation string          `json:"dropoff_location"`
	Dropoff         models.Coord    `json:"dropoff"`
	DepartureTime   time.Time       `json:"departure_time"`
	Seats           int             `json:"available_seats"`
	Price           *float64        `json:"price"`
	Preferences     string          `json:"preferences"`
}

func (v createRideRequest) validate() string {
	if v.Kind != models.KindOffer && v.Kind != models.KindRequest {
		return "type must be offer or request"
	}
	if v.PickupLocation == "" {
		return "pickup_location is required"
	}
	if v.DropoffLocation == "" {
		return "dropoff_location is required"
	}
	if v.DepartureTime.IsZero() {
		return "departure_time is required"
	}
	if v.Seats < 1 || v.Seats > maxSeats {
		return "available_seats must be between 1 and 8"
	}
	if v.Price != nil && (*v.Price < 0 || *v.Price > maxPrice) {
		return "price must be between 0 and 1000"
	}
	return ""
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var in createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Seats == 0 {
		in.Seats = 1
	}
	if msg := in.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	price := in.Price
	if price != nil {
		limit := routeCap(in.PickupLocation, in.DropoffLocation)
		if *price > limit {
			clamped := limit
			price = &clamped
		}
	}

	now := time.Now()
	ride := &models.Ride{
		ID:              uuid.NewString(),
		UserID:          user,
		Kind:            in.Kind,
		PickupLocation:  in.PickupLocation,
		Pickup:          in.Pickup,
		DropoffLocation: in.DropoffLocation,
		Dropoff:         in.Dropoff,
		DepartureTime:   in.DepartureTime,
		Seats:           in.Seats,
		Price:           price,
		Preferences:     in.Preferences,
		Status:          models.RideActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Store.CreateRide(r.Context(), ride); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.RidesCreated.Inc()
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	f := storage.OfferFilter{
		Origin:      r.URL.Query().Get("origin"),
		Destination: r.URL.Query().Get("destination"),
	}
	if d := r.URL.Query().Get("date"); d != "" {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		f.Day = &day
	}
	rides, err := s.Store.ListOpenOffers(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Status models.RideStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := s.Store.GetRide(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ride not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !s.mayTransitionRide(r, user, ride, in.Status) {
		writeError(w, http.StatusForbidden, "not a participant of this ride")
		return
	}
	if err := lifecycle.CheckRide(ride.Status, in.Status); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.Store.UpdateRideStatus(r.Context(), ride.ID, in.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.StatusTransitions.WithLabelValues("ride", string(in.Status)).Inc()
	s.publishStatus(r, "ride", ride.ID, []string{ride.UserID, user}, string(in.Status))

	// a completed ride changes eco aggregates for everyone involved
	if in.Status == models.RideCompleted {
		s.reconcileParticipants(r, ride)
	}

	ride.Status = in.Status
	writeJSON(w, http.StatusOK, ride)
}

// mayTransitionRide allows the owner any transition. A rider with an
// accepted match on the ride may only mark it completed; cancelling or
// restarting stays owner-only.
func (s *Server) mayTransitionRide(r *http.Request, user string, ride *models.Ride, to models.RideStatus) bool {
	if ride.UserID == user {
		return true
	}
	if to != models.RideCompleted {
		return false
	}
	matches, err := s.Store.MatchesByUser(r.Context(), user)
	if err != nil {
		return false
	}
	for _, m := range matches {
		if m.RideID == ride.ID && m.RiderID == user && m.Status == models.MatchAccepted {
			return true
		}
	}
	return false
}

type createMatchRequest struct {
	RideID        string        `json:"ride_id"`
	Pickup        *models.Coord `json:"pickup,omitempty"`
	DepartureTime *time.Time    `json:"departure_time,omitempty"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var in createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.RideID == "" {
		writeError(w, http.StatusUnprocessableEntity, "ride_id is required")
		return
	}

	ride, err := s.Store.GetRide(r.Context(), in.RideID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ride not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ride.Kind != models.KindOffer || ride.Status != models.RideActive {
		writeError(w, http.StatusConflict, "ride is not an open offer")
		return
	}
	if ride.UserID == user {
		writeError(w, http.StatusUnprocessableEntity, "cannot request your own ride")
		return
	}

	score := defaultMatchScore
	if in.Pickup != nil {
		req := models.MatchRequest{RiderID: user, Pickup: *in.Pickup}
		if in.DepartureTime != nil {
			req.DepartureTime = *in.DepartureTime
		}
		score = matching.HeuristicScore(req, *ride)
	}

	now := time.Now()
	m := &models.Match{
		ID:        uuid.NewString(),
		RiderID:   user,
		DriverID:  ride.UserID,
		RideID:    ride.ID,
		Score:     score,
		Status:    models.MatchPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.CreateMatch(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.MatchesTotal.Inc()
	if s.Notifier != nil {
		_ = s.Notifier.Notify(m.DriverID, *m) // best-effort
	}
	s.publishStatus(r, "match", m.ID, []string{m.RiderID, m.DriverID}, string(m.Status))
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	matches, err := s.Store.MatchesByUser(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("pending") == "true" {
		filtered := matches[:0]
		for _, m := range matches {
			if m.Status == models.MatchPending {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleMatchStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Status models.MatchStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.Store.GetMatch(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// accept/decline are driver decisions; completion may come from either side
	switch in.Status {
	case models.MatchAccepted, models.MatchDeclined:
		if m.DriverID != user {
			writeError(w, http.StatusForbidden, "only the driver can accept or decline")
			return
		}
	case models.MatchCompleted:
		if m.DriverID != user && m.RiderID != user {
			writeError(w, http.StatusForbidden, "not a participant of this match")
			return
		}
	default:
		writeError(w, http.StatusUnprocessableEntity, "unsupported match status")
		return
	}

	if err := lifecycle.CheckMatch(m.Status, in.Status); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.Store.UpdateMatchStatus(r.Context(), m.ID, in.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.StatusTransitions.WithLabelValues("match", string(in.Status)).Inc()
	s.publishStatus(r, "match", m.ID, []string{m.RiderID, m.DriverID}, string(in.Status))

	// acceptance reserves the underlying ride
	if in.Status == models.MatchAccepted {
		s.reserveRide(r, m)
	}

	m.Status = in.Status
	writeJSON(w, http.StatusOK, m)
}

// reserveRide moves the matched offer to the matched status. Failures are
// logged, not surfaced: the match acceptance already persisted, and a ride
// that was reserved by an earlier accept is left as is.
func (s *Server) reserveRide(r *http.Request, m *models.Match) {
	ride, err := s.Store.GetRide(r.Context(), m.RideID)
	if err != nil {
		s.logger.Warn("ride load failed after match accept", "match_id", m.ID, "ride_id", m.RideID, "error", err)
		return
	}
	if err := lifecycle.CheckRide(ride.Status, models.RideMatched); err != nil {
		s.logger.Warn("ride not reservable after match accept", "match_id", m.ID, "ride_id", ride.ID, "error", err)
		return
	}
	if err := s.Store.UpdateRideStatus(r.Context(), ride.ID, models.RideMatched); err != nil {
		s.logger.Warn("ride reserve failed after match accept", "match_id", m.ID, "ride_id", ride.ID, "error", err)
		return
	}
	observability.StatusTransitions.WithLabelValues("ride", string(models.RideMatched)).Inc()
	s.publishStatus(r, "ride", ride.ID, []string{ride.UserID}, string(models.RideMatched))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	s.WSReg.Add(id, conn)
	go func() {
		defer func() {
			s.WSReg.Remove(id)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) publishStatus(r *http.Request, entity, id string, userIDs []string, status string) {
	if s.Producer == nil {
		return
	}
	ev := models.StatusEvent{Entity: entity, ID: id, UserIDs: userIDs, Status: status, At: time.Now()}
	if err := s.Producer.PublishStatus(ev); err != nil {
		s.logger.Warn("status event publish failed", "entity", entity, "id", id, "error", err)
	}
}

func (s *Server) reconcileParticipants(r *http.Request, ride *models.Ride) {
	seen := map[string]bool{ride.UserID: true}
	if err := s.Eco.Reconcile(r.Context(), ride.UserID); err != nil {
		s.logger.Warn("eco reconcile failed", "user_id", ride.UserID, "error", err)
	}
	matches, err := s.Store.MatchesByUser(r.Context(), ride.UserID)
	if err != nil {
		return
	}
	for _, m := range matches {
		if m.RideID != ride.ID || seen[m.RiderID] {
			continue
		}
		seen[m.RiderID] = true
		if err := s.Eco.Reconcile(r.Context(), m.RiderID); err != nil {
			s.logger.Warn("eco reconcile failed", "user_id", m.RiderID, "error", err)
		}
	}
}

func routeCap(pickup, dropoff string) float64 {
	key := normalizeRoute(pickup) + "->" + normalizeRoute(dropoff)
	if limit, ok := routeCaps[key]; ok {
		return limit
	}
	return defaultPriceCap
}

func normalizeRoute(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		writeError(w, http.StatusUnauthorized, "X-User-ID header required")
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
