package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/dstein131/Main/internal/entity"
	"github.com/dstein131/Main/internal/logging"
	"github.com/google/uuid"
)

// Provider event types. Anything else is acknowledged and ignored so new
// provider events never turn into retry storms.
const (
	EventIntentCreated   = "payment_intent.created"
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// ProcessEvent verifies, deduplicates and dispatches inbound payment events.
//
// Per intent id the observable state machine is
//
//	unseen -> completed (succeeded event, materialize ok)   terminal
//	unseen -> failed    (failed event)                      terminal
//	terminal -> terminal (any later event)                  no-op
//
// The first terminal event observed wins; a later conflicting terminal event
// for the same intent never flips the order.
type ProcessEvent struct {
	provider  PaymentProvider
	orders    OrderRepo
	mat       *Materializer
	processed ProcessedEventStore
}

func NewProcessEvent(provider PaymentProvider, orders OrderRepo, mat *Materializer, processed ProcessedEventStore) *ProcessEvent {
	return &ProcessEvent{provider: provider, orders: orders, mat: mat, processed: processed}
}

// Execute handles one raw webhook delivery. A nil return means the event is
// durably handled or a harmless duplicate and the provider may stop retrying;
// any error return must surface as a non-2xx status so the provider retries.
func (uc *ProcessEvent) Execute(ctx context.Context, rawBody []byte, sigHeader string) error {
	l := logging.FromCtx(ctx)

	ev, err := uc.provider.VerifyEvent(rawBody, sigHeader)
	if err != nil {
		return fmt.Errorf("webhook signature: %w", ErrUnauthenticated)
	}

	// Fast path: marker written only after successful handling, so a crash
	// mid-settlement leaves the event unmarked and redeliverable. The unique
	// constraint on orders.payment_intent_id stays the real guard.
	if uc.processed != nil && ev.ID != "" {
		if seen, err := uc.processed.Seen(ctx, ev.ID); err == nil && seen {
			l.Info("webhook event already processed", "event_id", ev.ID, "type", ev.Type)
			webhookEvents(ev.Type, "duplicate")
			return nil
		}
	}

	switch ev.Type {
	case EventIntentCreated:
		l.Info("payment intent created", "intent_id", ev.IntentID, "user_id", ev.UserID)
		webhookEvents(ev.Type, "ok")

	case EventIntentSucceeded:
		if err := uc.handleSucceeded(ctx, ev); err != nil {
			webhookEvents(ev.Type, "error")
			return err
		}
		webhookEvents(ev.Type, "ok")

	case EventIntentFailed:
		if err := uc.handleFailed(ctx, ev); err != nil {
			webhookEvents(ev.Type, "error")
			return err
		}
		webhookEvents(ev.Type, "ok")

	default:
		l.Warn("unhandled webhook event type", "type", ev.Type, "event_id", ev.ID)
		webhookEvents(ev.Type, "ignored")
	}

	uc.markProcessed(ctx, ev)
	return nil
}

func (uc *ProcessEvent) handleSucceeded(ctx context.Context, ev IntentEvent) error {
	l := logging.FromCtx(ctx)

	existing, err := uc.orders.GetByIntentID(ctx, ev.IntentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("order lookup for intent %s: %w", ev.IntentID, err)
	}
	if existing != nil {
		// First terminal outcome is authoritative, including a prior failure
		// delivered out of order.
		l.Info("intent already settled", "intent_id", ev.IntentID, "order_id", existing.ID, "status", existing.Status)
		return nil
	}

	orderID, status, err := uc.mat.Materialize(ctx, ev.UserID, ev.IntentID, ev.Amount, ev.Currency)
	if err != nil {
		// Not acknowledged: the provider's retry loop redelivers.
		return fmt.Errorf("materialize intent %s: %w", ev.IntentID, err)
	}
	if status != domain.OrderStatusCompleted {
		// A racing failure event won the intent between our lookup and the
		// insert. First terminal outcome stands; this is not a settlement.
		l.Info("intent already terminal, success event suppressed", "intent_id", ev.IntentID, "order_id", orderID, "status", status)
		return nil
	}
	l.Info("settlement complete", "intent_id", ev.IntentID, "order_id", orderID)
	ordersSettled.Inc()
	return nil
}

func (uc *ProcessEvent) handleFailed(ctx context.Context, ev IntentEvent) error {
	l := logging.FromCtx(ctx)

	existing, err := uc.orders.GetByIntentID(ctx, ev.IntentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("order lookup for intent %s: %w", ev.IntentID, err)
	}
	if existing != nil {
		l.Info("intent already terminal, ignoring failure event", "intent_id", ev.IntentID, "status", existing.Status)
		return nil
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          ev.UserID,
		PaymentIntentID: ev.IntentID,
		Status:          domain.OrderStatusFailed,
		Total:           domain.Money{Cents: ev.Amount, Currency: ev.Currency},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.orders.CreateFailed(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateIntent) {
			l.Info("failure already recorded", "intent_id", ev.IntentID)
			return nil
		}
		return fmt.Errorf("record failed intent %s: %w", ev.IntentID, err)
	}
	l.Info("payment failed", "intent_id", ev.IntentID, "user_id", ev.UserID)
	return nil
}

func (uc *ProcessEvent) markProcessed(ctx context.Context, ev IntentEvent) {
	if uc.processed == nil || ev.ID == "" {
		return
	}
	if err := uc.processed.MarkProcessed(ctx, ev.ID); err != nil {
		logging.FromCtx(ctx).Warn("processed-event marker write failed", "event_id", ev.ID, "err", err)
	}
}
