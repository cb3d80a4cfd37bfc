package usecase

import (
	"context"
	"fmt"

	domain "github.com/dstein131/Main/internal/entity"
)

// CartService owns every pre-checkout mutation of the basket.
type CartService struct {
	carts   CartRepo
	catalog CatalogReader
}

func NewCartService(carts CartRepo, catalog CatalogReader) *CartService {
	return &CartService{carts: carts, catalog: catalog}
}

type AddItemInput struct {
	UserID    int64
	ServiceID int64
	Quantity  int64
	AddonIDs  []int64
}

// AddItem snapshots the current catalog price into the cart item and its
// addons. Later catalog changes do not touch existing rows.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (int64, error) {
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	title, price, err := s.catalog.ServicePrice(ctx, in.ServiceID)
	if err != nil {
		return 0, fmt.Errorf("service %d: %w", in.ServiceID, err)
	}

	item := &domain.CartItem{
		ServiceID: in.ServiceID,
		Title:     title,
		Quantity:  in.Quantity,
		UnitPrice: price,
	}
	for _, addonID := range in.AddonIDs {
		name, addonPrice, err := s.catalog.AddonPrice(ctx, addonID)
		if err != nil {
			return 0, fmt.Errorf("addon %d: %w", addonID, err)
		}
		item.Addons = append(item.Addons, domain.CartItemAddon{
			AddonID:   addonID,
			Name:      name,
			UnitPrice: addonPrice,
		})
	}
	if err := item.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	cartID, err := s.carts.EnsureCart(ctx, in.UserID)
	if err != nil {
		return 0, fmt.Errorf("ensure cart: %w", err)
	}
	return s.carts.AddItem(ctx, cartID, item)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, cartItemID, quantity int64) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidArgument)
	}
	if err := s.authorize(ctx, userID, cartItemID); err != nil {
		return err
	}
	return s.carts.UpdateQuantity(ctx, cartItemID, quantity)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, cartItemID int64) error {
	if err := s.authorize(ctx, userID, cartItemID); err != nil {
		return err
	}
	return s.carts.RemoveItem(ctx, cartItemID)
}

// Clear empties the user's cart. Safe to call when no cart exists.
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	return s.carts.Clear(ctx, userID)
}

func (s *CartService) Snapshot(ctx context.Context, userID int64) (domain.CartSnapshot, error) {
	return s.carts.Snapshot(ctx, userID)
}

func (s *CartService) authorize(ctx context.Context, userID, cartItemID int64) error {
	owner, err := s.carts.OwnerOf(ctx, cartItemID)
	if err != nil {
		return err
	}
	if owner != userID {
		return fmt.Errorf("cart item %d: %w", cartItemID, ErrForbidden)
	}
	return nil
}
