package matching

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/carpool-companion/internal/storage"
)

const assistantPromptFmt = `You are a helpful AI assistant for CarpoolCompanion, a ride-sharing platform.
Your role is to help users with:
1. Finding rides based on their needs
2. Offering rides
3. General carpooling advice
4. Understanding the platform features

Context about the user:
- User ID: %s
- User's recent rides: %s
- Available rides: %s

Be helpful, friendly, and provide specific actionable advice. If users ask about specific rides,
reference the available rides data. If they want to offer or request a ride, guide them to the
appropriate forms.`

const (
	assistantRecentRides  = 5
	assistantOpenOffers   = 10
	assistantHistoryTurns = 5
)

// Assistant answers free-text questions with the user's recent rides and
// the current open offers folded into the system prompt.
type Assistant struct {
	Client Client
	Store  storage.Store
}

// Reply forwards the trailing conversation turns plus the new message.
// The reply is free text; the parse-error degradation of Match does not
// apply here.
func (a *Assistant) Reply(ctx context.Context, userID string, history []Message, message string) (string, error) {
	recent, err := a.Store.RidesByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user rides: %w", err)
	}
	if len(recent) > assistantRecentRides {
		recent = recent[:assistantRecentRides]
	}
	offers, err := a.Store.ListOpenOffers(ctx, storage.OfferFilter{})
	if err != nil {
		return "", fmt.Errorf("load open offers: %w", err)
	}
	if len(offers) > assistantOpenOffers {
		offers = offers[:assistantOpenOffers]
	}

	recentJSON, _ := json.Marshal(recent)
	offersJSON, _ := json.Marshal(offers)

	msgs := []Message{{Role: "system", Content: fmt.Sprintf(assistantPromptFmt, userID, recentJSON, offersJSON)}}
	if len(history) > assistantHistoryTurns {
		history = history[len(history)-assistantHistoryTurns:]
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: message})

	return a.Client.Complete(ctx, msgs)
}
