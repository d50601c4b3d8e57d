// Package lifecycle owns the legal status transitions for rides and
// matches. All status writes must go through CheckRide/CheckMatch so no
// call site can move an entity out of a terminal state.
package lifecycle

import (
	"fmt"

	"github.com/example/carpool-companion/internal/models"
)

// ErrInvalidTransition is returned for any transition outside the tables
// below, including self-transitions and writes on terminal states.
type ErrInvalidTransition struct {
	Entity string
	From   string
	To     string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("%s status %q cannot move to %q", e.Entity, e.From, e.To)
}

var rideTransitions = map[models.RideStatus][]models.RideStatus{
	models.RideActive:  {models.RideMatched, models.RideCompleted, models.RideCancelled},
	models.RideMatched: {models.RideActive, models.RideCancelled},
	// completed and cancelled are terminal
}

var matchTransitions = map[models.MatchStatus][]models.MatchStatus{
	models.MatchPending:  {models.MatchAccepted, models.MatchDeclined},
	models.MatchAccepted: {models.MatchCompleted},
	// declined and completed are terminal
}

// CheckRide validates a ride status change. A matched ride must be started
// (moved back to active) before it can complete.
func CheckRide(from, to models.RideStatus) error {
	for _, allowed := range rideTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return &ErrInvalidTransition{Entity: "ride", From: string(from), To: string(to)}
}

// CheckMatch validates a match status change. Accept/decline are
// driver-initiated and only valid while pending; an accepted match may
// later be marked completed.
func CheckMatch(from, to models.MatchStatus) error {
	for _, allowed := range matchTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return &ErrInvalidTransition{Entity: "match", From: string(from), To: string(to)}
}

// RideTerminal reports whether no further ride transitions are possible.
func RideTerminal(s models.RideStatus) bool { return len(rideTransitions[s]) == 0 }

// MatchTerminal reports whether no further match transitions are possible.
func MatchTerminal(s models.MatchStatus) bool { return len(matchTransitions[s]) == 0 }
