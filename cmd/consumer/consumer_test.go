package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/carpool-companion/internal/models"
)

// fakeLeaderboard implements LeaderboardUpdater for tests
type fakeLeaderboard struct {
	fail   int // number of times to fail ZAdd before succeeding
	calls  int
	scores map[string]float64
}

func (f *fakeLeaderboard) ZAdd(ctx context.Context, key, member string, score float64) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("zadd fail")
	}
	if f.scores == nil {
		f.scores = map[string]float64{}
	}
	f.scores[member] = score
	return nil
}

func TestUpdateLeaderboardWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeLeaderboard{fail: 2}
	ctx := context.Background()
	start := time.Now()
	if err := updateLeaderboardWithRetry(ctx, f, "u1", 3, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if f.scores["u1"] != 3 {
		t.Fatalf("expected score 3, got %v", f.scores["u1"])
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateLeaderboardWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeLeaderboard{fail: 5}
	ctx := context.Background()
	if err := updateLeaderboardWithRetry(ctx, f, "u1", 3, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestUniqueUsers(t *testing.T) {
	ev := models.StatusEvent{UserIDs: []string{"a", "b", "a", "", "c", "b"}}
	got := uniqueUsers(ev)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
