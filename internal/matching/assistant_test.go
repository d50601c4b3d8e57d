package matching

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool-companion/internal/models"
	"github.com/example/carpool-companion/internal/storage"
)

func TestAssistantReplyBuildsContext(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateRide(ctx, &models.Ride{
		ID: "r1", UserID: "u1", Kind: models.KindRequest,
		PickupLocation: "Noida", DropoffLocation: "Gurgaon",
		DepartureTime: time.Now(), Seats: 1, Status: models.RideCompleted,
	}))
	require.NoError(t, store.CreateRide(ctx, &models.Ride{
		ID: "r2", UserID: "d1", Kind: models.KindOffer,
		PickupLocation: "Indirapuram", DropoffLocation: "Connaught Place",
		DepartureTime: time.Now(), Seats: 2, Status: models.RideActive,
	}))

	client := &fakeClient{reply: "Here is a ride from Indirapuram."}
	a := &Assistant{Client: client, Store: store}

	reply, err := a.Reply(ctx, "u1", nil, "any rides to CP?")
	require.NoError(t, err)
	assert.Equal(t, "Here is a ride from Indirapuram.", reply)

	require.NotEmpty(t, client.last)
	system := client.last[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "u1")
	assert.Contains(t, system.Content, "Indirapuram")
	assert.Equal(t, "any rides to CP?", client.last[len(client.last)-1].Content)
}

func TestAssistantReplyTrimsHistory(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	a := &Assistant{Client: client, Store: storage.NewMemoryStore()}

	var history []Message
	for i := 0; i < 12; i++ {
		history = append(history, Message{Role: "user", Content: "turn " + strconv.Itoa(i)})
	}

	_, err := a.Reply(context.Background(), "u1", history, "latest")
	require.NoError(t, err)

	// system prompt + five history turns + the new message
	require.Len(t, client.last, 7)
	assert.Equal(t, "turn 7", client.last[1].Content)
	assert.Equal(t, "latest", client.last[6].Content)
}
