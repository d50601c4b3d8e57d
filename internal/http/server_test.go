package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool-companion/internal/dispatch"
	"github.com/example/carpool-companion/internal/eco"
	"github.com/example/carpool-companion/internal/geocode"
	"github.com/example/carpool-companion/internal/matching"
	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/storage"
)

type fakeCompletion struct {
	reply string
	err   error
}

func (f *fakeCompletion) Complete(ctx context.Context, messages []matching.Message) (string, error) {
	return f.reply, f.err
}

func newTestServer(t *testing.T, completion matching.Client) *Server {
	t.Helper()
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wsreg := dispatch.NewWSRegistry(logger)
	s := &Server{
		Store:      store,
		Eco:        &eco.Service{Store: store},
		Geocoder:   geocode.NewService("", geocode.NewMemoryCache(time.Minute)),
		WSReg:      wsreg,
		Completion: completion,
		TopN:       10,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func do(t *testing.T, s *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createProfile(t *testing.T, s *Server, id, name string) {
	t.Helper()
	rec := do(t, s, "POST", "/api/v1/profiles", "", map[string]any{
		"id": id, "full_name": name, "email": id + "@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func createOffer(t *testing.T, s *Server, userID string, price *float64) models.Ride {
	t.Helper()
	body := map[string]any{
		"type":             "offer",
		"pickup_location":  "Noida",
		"dropoff_location": "Gurgaon",
		"departure_time":   time.Now().Add(time.Hour).Format(time.RFC3339),
		"available_seats":  3,
	}
	if price != nil {
		body["price"] = *price
	}
	rec := do(t, s, "POST", "/api/v1/rides", userID, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[models.Ride](t, rec)
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, "POST", "/api/v1/profiles", "", map[string]any{"full_name": "Asha", "email": "asha@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Profile](t, rec)
	require.NotEmpty(t, created.ID)

	rec = do(t, s, "GET", "/api/v1/profiles/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Profile](t, rec)
	assert.Equal(t, "Asha", got.FullName)

	rec = do(t, s, "GET", "/api/v1/profiles/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, "POST", "/api/v1/profiles", "", map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateRideValidation(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Dev")

	rec := do(t, s, "POST", "/api/v1/rides", "", map[string]any{"type": "offer"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, "POST", "/api/v1/rides", "d1", map[string]any{
		"type": "commute", "pickup_location": "A", "dropoff_location": "B",
		"departure_time": time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, "POST", "/api/v1/rides", "d1", map[string]any{
		"type": "offer", "pickup_location": "A", "dropoff_location": "B",
		"departure_time": time.Now().Format(time.RFC3339), "available_seats": 9,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, "POST", "/api/v1/rides", "d1", map[string]any{
		"type": "offer", "pickup_location": "A", "dropoff_location": "B",
		"departure_time": time.Now().Format(time.RFC3339), "available_seats": 2, "price": 1500,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateRideClampsPriceToRouteCap(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Dev")

	price := 250.0
	ride := createOffer(t, s, "d1", &price)
	require.NotNil(t, ride.Price)
	assert.Equal(t, 100.0, *ride.Price)
	assert.Equal(t, models.RideActive, ride.Status)
}

func TestRideStatusTransitions(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Dev")
	ride := createOffer(t, s, "d1", nil)

	rec := do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "stranger", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "d1", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "d1", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMatchFlow(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Driver")
	createProfile(t, s, "r1", "Rider")
	ride := createOffer(t, s, "d1", nil)

	rec := do(t, s, "POST", "/api/v1/matches", "d1", map[string]any{"ride_id": ride.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, "POST", "/api/v1/matches", "r1", map[string]any{"ride_id": ride.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	m := decode[models.Match](t, rec)
	assert.Equal(t, models.MatchPending, m.Status)
	assert.Equal(t, "r1", m.RiderID)
	assert.Equal(t, "d1", m.DriverID)
	assert.Equal(t, 85, m.Score)

	// only the driver may accept
	rec = do(t, s, "POST", "/api/v1/matches/"+m.ID+"/status", "r1", map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, "POST", "/api/v1/matches/"+m.ID+"/status", "d1", map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code)

	// acceptance reserves the ride
	ride2, err := s.Store.GetRide(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideMatched, ride2.Status)

	rec = do(t, s, "POST", "/api/v1/matches/"+m.ID+"/status", "d1", map[string]any{"status": "declined"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRiderCannotCancelOrRestartDriversRide(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Driver")
	createProfile(t, s, "r1", "Rider")
	ride := createOffer(t, s, "d1", nil)

	rec := do(t, s, "POST", "/api/v1/matches", "r1", map[string]any{"ride_id": ride.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	m := decode[models.Match](t, rec)
	rec = do(t, s, "POST", "/api/v1/matches/"+m.ID+"/status", "d1", map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code)

	// the accepted rider may not cancel or restart the ride
	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "r1", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "r1", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	got, err := s.Store.GetRide(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideMatched, got.Status)

	// completion stays open to the rider once the driver starts the ride
	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "d1", map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "r1", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecondAcceptLeavesReservedRideAlone(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Driver")
	createProfile(t, s, "r1", "Rider One")
	createProfile(t, s, "r2", "Rider Two")
	ride := createOffer(t, s, "d1", nil)

	rec := do(t, s, "POST", "/api/v1/matches", "r1", map[string]any{"ride_id": ride.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	m1 := decode[models.Match](t, rec)
	rec = do(t, s, "POST", "/api/v1/matches", "r2", map[string]any{"ride_id": ride.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	m2 := decode[models.Match](t, rec)

	rec = do(t, s, "POST", "/api/v1/matches/"+m1.ID+"/status", "d1", map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code)

	// the second accept succeeds; the ride is already reserved and stays so
	rec = do(t, s, "POST", "/api/v1/matches/"+m2.ID+"/status", "d1", map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := s.Store.GetRide(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideMatched, got.Status)
}

func TestWalletReflectsCompletedSharedRide(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Driver")
	createProfile(t, s, "r1", "Rider")
	ride := createOffer(t, s, "d1", nil)

	rec := do(t, s, "POST", "/api/v1/matches", "r1", map[string]any{"ride_id": ride.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	m := decode[models.Match](t, rec)
	rec = do(t, s, "POST", "/api/v1/matches/"+m.ID+"/status", "d1", map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code)

	// a matched ride is started back to active, then completed
	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "d1", map[string]any{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, "POST", "/api/v1/rides/"+ride.ID+"/status", "d1", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, "GET", "/api/v1/wallet", "r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w := decode[walletResponse](t, rec)
	assert.Equal(t, 1, w.SharedRides)
	assert.Equal(t, 0, w.EcoCoins)
	assert.Equal(t, 4, w.RemainingToNextCoin)

	rec = do(t, s, "GET", "/api/v1/wallet", "d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dw := decode[walletResponse](t, rec)
	assert.Equal(t, 1, dw.SharedRides)
	assert.Equal(t, 1, dw.TotalRides)
	assert.InDelta(t, 2.4, dw.CO2SavedKg, 0.001)
	assert.InDelta(t, 2.4, dw.CommunityKg, 0.001)
}

func TestAIMatchWithoutKeyIsConfigError(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, "POST", "/api/v1/matches/ai", "r1", map[string]any{
		"pickup_location": "Noida", "dropoff_location": "Gurgaon",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAIMatchScoresOpenOffers(t *testing.T) {
	createReply := func(rideID string) string {
		return `[{"ride":{"id":"` + rideID + `"},"score":92}]`
	}
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Driver")
	createProfile(t, s, "r1", "Rider")
	ride := createOffer(t, s, "d1", nil)
	s.Completion = &fakeCompletion{reply: createReply(ride.ID)}

	rec := do(t, s, "POST", "/api/v1/matches/ai", "r1", map[string]any{
		"pickup_location": "Noida", "dropoff_location": "Gurgaon",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	scored := decode[[]models.ScoredOffer](t, rec)
	require.Len(t, scored, 1)
	assert.Equal(t, ride.ID, scored[0].Ride.ID)
	assert.Equal(t, 92, scored[0].Score)
}

func TestAIMatchUnparsableReplyIsEmptyList(t *testing.T) {
	s := newTestServer(t, &fakeCompletion{reply: "no rides today, sorry"})
	createProfile(t, s, "d1", "Driver")
	createProfile(t, s, "r1", "Rider")
	createOffer(t, s, "d1", nil)

	rec := do(t, s, "POST", "/api/v1/matches/ai", "r1", map[string]any{
		"pickup_location": "Noida", "dropoff_location": "Gurgaon",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	scored := decode[[]models.ScoredOffer](t, rec)
	assert.Empty(t, scored)
}

func TestCostCompareEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, "POST", "/api/v1/costs/compare", "", map[string]any{
		"daily_distance_km": 25, "days_per_week": 5, "fuel_type": "petrol",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var cmp struct {
		PersonalMonthly float64 `json:"personal_cost"`
		CarpoolMonthly  float64 `json:"carpool_cost"`
		MonthlySavings  float64 `json:"savings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cmp))
	assert.InDelta(t, 7490.83, cmp.PersonalMonthly, 0.01)
	assert.InDelta(t, 2204.17, cmp.CarpoolMonthly, 0.01)
	assert.InDelta(t, 5286.66, cmp.MonthlySavings, 0.01)

	rec = do(t, s, "POST", "/api/v1/costs/compare", "", map[string]any{
		"daily_distance_km": -1, "days_per_week": 5, "fuel_type": "petrol",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListRidesFiltersByRoute(t *testing.T) {
	s := newTestServer(t, nil)
	createProfile(t, s, "d1", "Driver")
	createOffer(t, s, "d1", nil)

	rec := do(t, s, "GET", "/api/v1/rides?origin=noida", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rides := decode[[]models.Ride](t, rec)
	assert.Len(t, rides, 1)

	rec = do(t, s, "GET", "/api/v1/rides?origin=pune", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rides = decode[[]models.Ride](t, rec)
	assert.Empty(t, rides)
}
