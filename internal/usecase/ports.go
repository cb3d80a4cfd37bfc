package usecase

import (
	"context"

	domain "github.com/dstein131/Main/internal/entity"
)

// CartRepo owns carts, cart_items and cart_item_addons.
type CartRepo interface {
	// EnsureCart returns the user's cart id, creating the row if absent.
	// Race-safe under the unique constraint on carts.user_id.
	EnsureCart(ctx context.Context, userID int64) (int64, error)

	AddItem(ctx context.Context, cartID int64, item *domain.CartItem) (int64, error)
	// OwnerOf reports the owning user of a cart item, ErrNotFound if absent.
	OwnerOf(ctx context.Context, cartItemID int64) (int64, error)
	UpdateQuantity(ctx context.Context, cartItemID, quantity int64) error
	RemoveItem(ctx context.Context, cartItemID int64) error
	// Clear deletes all items of the user's cart in one transaction.
	// No-op (nil) when the user has no cart.
	Clear(ctx context.Context, userID int64) error
	Snapshot(ctx context.Context, userID int64) (domain.CartSnapshot, error)
}

// OrderRepo owns orders, order_items, order_addons and payments.
type OrderRepo interface {
	// CreateSettled writes the order with its children and an outbox row in
	// a single transaction. Returns ErrDuplicateIntent when an order for the
	// same payment intent id already exists.
	CreateSettled(ctx context.Context, o *domain.Order) error
	// CreateFailed records a failed intent for observability (no items).
	// Same duplicate contract as CreateSettled.
	CreateFailed(ctx context.Context, o *domain.Order) error
	GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	GetByID(ctx context.Context, userID int64, orderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

// CatalogReader is the read-only view of services and service_addons.
type CatalogReader interface {
	ServicePrice(ctx context.Context, serviceID int64) (title string, cents int64, err error)
	AddonPrice(ctx context.Context, addonID int64) (name string, cents int64, err error)
}

// IntentEvent is a verified, parsed provider webhook event.
type IntentEvent struct {
	ID       string // provider event id, used for dedup fast path
	Type     string
	IntentID string
	UserID   int64
	Amount   int64
	Currency string
}

// PaymentProvider wraps the external payment SDK.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, userID int64, amount int64, currency string) (clientSecret, intentID string, err error)
	// VerifyEvent authenticates the raw webhook body against the signature
	// header and parses it. Must fail closed.
	VerifyEvent(payload []byte, sigHeader string) (IntentEvent, error)
}

// ProcessedEventStore is a best-effort marker for already-handled provider
// events. The orders.payment_intent_id unique constraint stays authoritative;
// this only short-circuits redeliveries.
type ProcessedEventStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
