package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether no further status transition is permitted.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

var ErrInvalidAmount = errors.New("invalid amount")

type Money struct {
	Cents    int64
	Currency string
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Currency == "" {
		return ErrInvalidAmount
	}
	return nil
}

// Order is the immutable settlement record. Created exactly once per
// payment intent; PaymentIntentID carries a unique constraint in storage.
type Order struct {
	ID              string
	UserID          int64
	PaymentIntentID string
	Status          OrderStatus
	Total           Money
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items   []OrderItem
	Payment *PaymentRecord
}

type OrderItem struct {
	ID         int64
	OrderID    string
	ServiceID  int64
	Title      string
	Quantity   int64
	UnitPrice  int64 // minor units, snapshot at settlement
	TotalPrice int64 // Quantity * UnitPrice
	Addons     []OrderAddon
}

// OrderAddon references its OrderItem explicitly; addons are never
// attached to the order as a loose bag.
type OrderAddon struct {
	ID          int64
	OrderID     string
	OrderItemID int64
	AddonID     int64
	Name        string
	UnitPrice   int64
}

type PaymentRecord struct {
	ID      string
	OrderID string
	Method  string
	Status  string
	Amount  int64
	PaidAt  time.Time
}

func (o *Order) Validate() error {
	if err := o.Total.Validate(); err != nil {
		return err
	}
	if o.PaymentIntentID == "" {
		return errors.New("payment intent id required")
	}
	return nil
}
