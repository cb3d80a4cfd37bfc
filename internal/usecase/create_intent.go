package usecase

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/dstein131/Main/internal/entity"
)

type CheckoutItem struct {
	ServiceID int64
	Quantity  int64
	AddonIDs  []int64
}

type CreateIntentInput struct {
	UserID   int64
	Currency string
	Items    []CheckoutItem
}

type CreateIntentOutput struct {
	ClientSecret string
	IntentID     string
	Amount       int64
	Currency     string
}

// CreateIntent prices the checkout from the catalog and opens a provider
// payment intent tagged with the user id. The amount the provider charges is
// always the server-side catalog price, never anything the client sent.
type CreateIntent struct {
	catalog  CatalogReader
	provider PaymentProvider
}

func NewCreateIntent(catalog CatalogReader, provider PaymentProvider) *CreateIntent {
	return &CreateIntent{catalog: catalog, provider: provider}
}

func (uc *CreateIntent) Execute(ctx context.Context, in CreateIntentInput) (CreateIntentOutput, error) {
	if len(in.Items) == 0 {
		return CreateIntentOutput{}, fmt.Errorf("no items provided for payment: %w", ErrInvalidArgument)
	}
	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = "usd"
	}

	// Re-price every line from the catalog.
	snap := domain.CartSnapshot{UserID: in.UserID}
	for _, it := range in.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		title, price, err := uc.catalog.ServicePrice(ctx, it.ServiceID)
		if err != nil {
			return CreateIntentOutput{}, fmt.Errorf("service %d: %w", it.ServiceID, err)
		}
		item := domain.CartItem{ServiceID: it.ServiceID, Title: title, Quantity: qty, UnitPrice: price}
		for _, addonID := range it.AddonIDs {
			name, addonPrice, err := uc.catalog.AddonPrice(ctx, addonID)
			if err != nil {
				return CreateIntentOutput{}, fmt.Errorf("addon %d: %w", addonID, err)
			}
			item.Addons = append(item.Addons, domain.CartItemAddon{AddonID: addonID, Name: name, UnitPrice: addonPrice})
		}
		snap.Items = append(snap.Items, item)
	}

	amount, err := ComputeTotal(snap)
	if err != nil {
		return CreateIntentOutput{}, err
	}

	secret, intentID, err := uc.provider.CreateIntent(ctx, in.UserID, amount, currency)
	if err != nil {
		return CreateIntentOutput{}, fmt.Errorf("payment provider: %w", err)
	}

	return CreateIntentOutput{
		ClientSecret: secret,
		IntentID:     intentID,
		Amount:       amount,
		Currency:     currency,
	}, nil
}
