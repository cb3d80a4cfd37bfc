package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidPrice    = errors.New("price must not be negative")
)

// Cart is the mutable pre-purchase basket. At most one per user.
type Cart struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
}

// CartItem snapshots the catalog price at add-time; UnitPrice is never
// mutated afterwards, re-pricing happens only at settlement.
type CartItem struct {
	ID        int64
	CartID    int64
	ServiceID int64
	Title     string
	Quantity  int64
	UnitPrice int64 // minor units
	Addons    []CartItemAddon
}

type CartItemAddon struct {
	ID         int64
	CartItemID int64
	AddonID    int64
	Name       string
	UnitPrice  int64
}

func (i CartItem) Validate() error {
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.UnitPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

func (a CartItemAddon) Validate() error {
	if a.UnitPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// CartSnapshot is the read model handed to pricing and settlement.
type CartSnapshot struct {
	CartID int64
	UserID int64
	Items  []CartItem
}

func (s CartSnapshot) Empty() bool { return len(s.Items) == 0 }
