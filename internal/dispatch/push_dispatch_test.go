package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/carpool-companion/internal/models"
)

func TestPushDispatcherFallsBackToEndpoint(t *testing.T) {
	var got struct {
		DriverID string       `json:"driver_id"`
		Match    models.Match `json:"match"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer push-key" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	p := NewPushDispatcher(srv.URL, "push-key", nil)
	m := models.Match{ID: "m1", RiderID: "u1", DriverID: "d1", RideID: "r1", Score: 85}
	if err := p.Notify("d1", m); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.DriverID != "d1" || got.Match.ID != "m1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestPushDispatcherNoEndpointNoSession(t *testing.T) {
	p := NewPushDispatcher("", "", nil)
	err := p.Notify("d1", models.Match{ID: "m1"})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
