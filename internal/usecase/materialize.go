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

// Materializer converts a paid cart into the permanent order record. It is
// invoked only from the webhook succeeded path and must be safe under
// duplicate and concurrent delivery: the unique payment intent id constraint
// is the single idempotency guard.
type Materializer struct {
	carts  CartRepo
	orders OrderRepo
}

func NewMaterializer(carts CartRepo, orders OrderRepo) *Materializer {
	return &Materializer{carts: carts, orders: orders}
}

// Materialize returns the id and status of the order the intent resolved to.
// A duplicate intent id resolves to the already-committed order, which may be
// a failed one written by a racing failure event; every other failure leaves
// no partial rows and propagates so the provider redelivers the event.
func (m *Materializer) Materialize(ctx context.Context, userID int64, intentID string, amount int64, currency string) (string, domain.OrderStatus, error) {
	l := logging.FromCtx(ctx)

	// Re-read the authoritative cart; the snapshot taken at intent creation
	// is not trusted across the webhook gap.
	snap, err := m.carts.Snapshot(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("cart snapshot for user %d: %w", userID, err)
	}
	if snap.Empty() {
		return "", "", fmt.Errorf("paid intent %s but cart of user %d is empty: %w", intentID, userID, ErrFailedPrecondition)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		PaymentIntentID: intentID,
		Status:          domain.OrderStatusCompleted,
		Total:           domain.Money{Cents: amount, Currency: currency},
		CreatedAt:       now,
		UpdatedAt:       now,
		Payment: &domain.PaymentRecord{
			ID:     uuid.NewString(),
			Method: "card",
			Status: "completed",
			Amount: amount,
			PaidAt: now,
		},
	}
	for _, item := range snap.Items {
		oi := domain.OrderItem{
			ServiceID:  item.ServiceID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.Quantity * item.UnitPrice,
		}
		for _, ad := range item.Addons {
			oi.Addons = append(oi.Addons, domain.OrderAddon{
				AddonID:   ad.AddonID,
				Name:      ad.Name,
				UnitPrice: ad.UnitPrice,
			})
		}
		order.Items = append(order.Items, oi)
	}
	if err := order.Validate(); err != nil {
		return "", "", fmt.Errorf("order for intent %s: %w", intentID, err)
	}

	if err := m.orders.CreateSettled(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateIntent) {
			existing, lookupErr := m.orders.GetByIntentID(ctx, intentID)
			if lookupErr != nil {
				return "", "", fmt.Errorf("lookup after duplicate intent %s: %w", intentID, lookupErr)
			}
			l.Info("duplicate settlement suppressed", "intent_id", intentID, "order_id", existing.ID, "status", existing.Status)
			return existing.ID, existing.Status, nil
		}
		return "", "", fmt.Errorf("create order for intent %s: %w", intentID, err)
	}

	// The order is durable from here on. A failed cart clear is a stale-cart
	// cosmetic bug, never a reason to unwind the commit.
	if err := m.carts.Clear(ctx, userID); err != nil {
		l.Error("cart clear after settlement failed", "user_id", userID, "order_id", order.ID, "err", err)
	}

	l.Info("order settled", "order_id", order.ID, "intent_id", intentID, "amount_cents", amount)
	return order.ID, order.Status, nil
}
