package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Charger is what the upgrade handler needs from a payment backend.
type Charger interface {
	ChargePremium(ctx context.Context, userID string) (string, error)
}

// StripeClient is a thin wrapper around stripe-go for the premium-tier
// purchase. It holds funds with a manual-capture intent and captures
// immediately so a capture failure can release the hold.
type StripeClient struct {
	Price    int64
	Currency string
}

// NewStripeClient sets the package-level stripe key. Price is in the
// currency's smallest unit.
func NewStripeClient(apiKey string, price int64, currency string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{Price: price, Currency: currency}
}

// ChargePremium creates a manual-capture PaymentIntent and captures it.
// It returns the PaymentIntent ID on success.
func (s *StripeClient) ChargePremium(ctx context.Context, userID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(s.Price),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("user_id", userID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	if _, err := paymentintent.Capture(pi.ID, nil); err != nil {
		// release the hold; the user keeps their money and their free tier
		_, _ = paymentintent.Cancel(pi.ID, nil)
		return "", err
	}
	return pi.ID, nil
}
