package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/example/carpool-companion/internal/geo"
	"github.com/example/carpool-companion/internal/matching"
	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/storage"
)

func (s *Server) handleAIMatch(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if s.Completion == nil {
		writeError(w, http.StatusServiceUnavailable, matching.ErrMissingAPIKey.Error())
		return
	}
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PickupLocation == "" || req.DropoffLocation == "" {
		writeError(w, http.StatusUnprocessableEntity, "pickup_location and dropoff_location are required")
		return
	}
	req.RiderID = user

	offers, err := s.Store.ListOpenOffers(r.Context(), storage.OfferFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// drop the rider's own offers, then cap the candidate set before it
	// reaches the completion prompt
	candidates := offers[:0]
	for _, o := range offers {
		if o.UserID != user {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) > s.TopN {
		candidates = geo.NearestOffers(req.Pickup, candidates, s.TopN)
	}

	m := &matching.Matcher{Client: s.Completion}
	scored, err := m.Match(r.Context(), req, candidates)
	if err != nil {
		s.logger.Error("ai match failed", "user_id", user, "error", err)
		writeError(w, http.StatusBadGateway, "matching service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, scored)
}

func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if s.Completion == nil {
		writeError(w, http.StatusServiceUnavailable, matching.ErrMissingAPIKey.Error())
		return
	}
	var in struct {
		Message string             `json:"message"`
		History []matching.Message `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Message == "" {
		writeError(w, http.StatusUnprocessableEntity, "message is required")
		return
	}

	a := &matching.Assistant{Client: s.Completion, Store: s.Store}
	reply, err := a.Reply(r.Context(), user, in.History, in.Message)
	if err != nil {
		s.logger.Error("assistant reply failed", "user_id", user, "error", err)
		writeError(w, http.StatusBadGateway, "assistant service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
