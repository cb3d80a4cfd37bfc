package stripeadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dstein131/Main/internal/usecase"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Provider wraps the Stripe SDK behind the usecase.PaymentProvider port.
// The user id travels as intent metadata so the webhook processor can
// recover ownership without a local lookup table.
type Provider struct {
	sc            *client.API
	webhookSecret string
}

func New(apiKey, webhookSecret string) *Provider {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &Provider{sc: sc, webhookSecret: webhookSecret}
}

var _ usecase.PaymentProvider = (*Provider)(nil)

func (p *Provider) CreateIntent(ctx context.Context, userID int64, amount int64, currency string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))

	pi, err := p.sc.PaymentIntents.New(params)
	if err != nil {
		// The client may retry; the server must not.
		return "", "", fmt.Errorf("create payment intent: %s: %w", err, usecase.ErrUnavailable)
	}
	return pi.ClientSecret, pi.ID, nil
}

// intentPayload is the slice of the provider's payment_intent object the
// settlement pipeline needs.
type intentPayload struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

func (p *Provider) VerifyEvent(payload []byte, sigHeader string) (usecase.IntentEvent, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return usecase.IntentEvent{}, fmt.Errorf("construct event: %w", err)
	}

	var obj intentPayload
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return usecase.IntentEvent{}, fmt.Errorf("decode event object: %w", err)
	}

	out := usecase.IntentEvent{
		ID:       ev.ID,
		Type:     string(ev.Type),
		IntentID: obj.ID,
		Amount:   obj.Amount,
		Currency: obj.Currency,
	}
	if raw, ok := obj.Metadata["user_id"]; ok {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return usecase.IntentEvent{}, fmt.Errorf("bad user_id metadata %q: %w", raw, err)
		}
		out.UserID = uid
	}
	return out, nil
}
