package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RideKind distinguishes a driver's offer from a rider's request.
type RideKind string

const (
	KindOffer   RideKind = "offer"
	KindRequest RideKind = "request"
)

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideMatched   RideStatus = "matched"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchAccepted  MatchStatus = "accepted"
	MatchDeclined  MatchStatus = "declined"
	MatchCompleted MatchStatus = "completed"
)

// Preferences is the optional compatibility profile a user fills in once.
type Preferences struct {
	Music       string `json:"music,omitempty"`
	Pets        bool   `json:"pets,omitempty"`
	Smoking     bool   `json:"smoking,omitempty"`
	Personality string `json:"personality,omitempty"`
}

type Profile struct {
	ID          string      `json:"id"`
	FullName    string      `json:"full_name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone,omitempty"`
	IsPremium   bool        `json:"is_premium"`
	IsVerified  bool        `json:"is_verified"`
	EcoCoins    int         `json:"eco_coins"`
	TotalRides  int         `json:"total_rides"`
	CO2SavedKg  float64     `json:"co2_saved"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Ride struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Kind            RideKind   `json:"type"`
	PickupLocation  string     `json:"pickup_location"`
	Pickup          Coord      `json:"pickup"`
	DropoffLocation string     `json:"dropoff_location"`
	Dropoff         Coord      `json:"dropoff"`
	DepartureTime   time.Time  `json:"departure_time"`
	Seats           int        `json:"available_seats"`
	Price           *float64   `json:"price,omitempty"`
	Preferences     string     `json:"preferences,omitempty"`
	Status          RideStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Match struct {
	ID        string      `json:"id"`
	RiderID   string      `json:"rider_id"`
	DriverID  string      `json:"driver_id"`
	RideID    string      `json:"ride_id"`
	Score     int         `json:"match_score"`
	Status    MatchStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Shared reports whether the match counts as a shared ride for eco
// accounting: rider and driver must be distinct people.
func (m Match) Shared() bool { return m.RiderID != "" && m.RiderID != m.DriverID }

// MatchRequest is a rider's search input fed to the matching adapter.
type MatchRequest struct {
	RiderID         string    `json:"rider_id"`
	PickupLocation  string    `json:"pickup_location"`
	Pickup          Coord     `json:"pickup"`
	DropoffLocation string    `json:"dropoff_location"`
	Dropoff         Coord     `json:"dropoff"`
	DepartureTime   time.Time `json:"departure_time"`
	Preferences     string    `json:"preferences,omitempty"`
}

// ScoredOffer is one candidate ride annotated with a compatibility score.
type ScoredOffer struct {
	Ride  Ride `json:"ride"`
	Score int  `json:"score"`
}

// StatusEvent is published on every ride/match transition so the consumer
// can reconcile derived aggregates without polling.
type StatusEvent struct {
	Entity  string    `json:"entity"` // "ride" or "match"
	ID      string    `json:"id"`
	UserIDs []string  `json:"user_ids"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}
