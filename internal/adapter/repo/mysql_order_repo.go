package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/dstein131/Main/internal/entity"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/jmoiron/sqlx"
)

type MySQLOrderRepo struct{ db *sqlx.DB }

func NewMySQLOrderRepo(db *sqlx.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)

// CreateSettled writes the order, its items, their addons, the payment record
// and the order.settled outbox row in one transaction. The unique key on
// payment_intent_id converts a concurrent double-settlement into
// ErrDuplicateIntent for exactly one of the writers.
func (r *MySQLOrderRepo) CreateSettled(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrderRow(ctx, tx, o); err != nil {
		return err
	}

	for i := range o.Items {
		item := &o.Items[i]
		res, err := tx.ExecContext(ctx, `
INSERT INTO order_items (order_id, service_id, quantity, unit_price, total_price)
VALUES (?, ?, ?, ?, ?)`,
			o.ID, item.ServiceID, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = itemID
		item.OrderID = o.ID

		for j := range item.Addons {
			ad := &item.Addons[j]
			if _, err := tx.ExecContext(ctx, `
INSERT INTO order_addons (order_id, order_item_id, addon_id, unit_price)
VALUES (?, ?, ?, ?)`,
				o.ID, itemID, ad.AddonID, ad.UnitPrice); err != nil {
				return fmt.Errorf("insert order addon: %w", err)
			}
		}
	}

	if o.Payment != nil {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO payments (payment_id, order_id, payment_method, payment_status, amount, payment_date)
VALUES (?, ?, ?, ?, ?, ?)`,
			o.Payment.ID, o.ID, o.Payment.Method, o.Payment.Status, o.Payment.Amount, o.Payment.PaidAt); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}

	payload, err := json.Marshal(usecase.OrderSettledMsg{
		OrderID:     o.ID,
		UserID:      o.UserID,
		IntentID:    o.PaymentIntentID,
		AmountCents: o.Total.Cents,
		Currency:    o.Total.Currency,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO outbox (channel, payload, status, retry_count, next_attempt_at, created_at)
VALUES ('order.settled', ?, 'PENDING', 0, NOW(), NOW())`, payload); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateFailed records a failed intent. No items, no payment row, no outbox.
func (r *MySQLOrderRepo) CreateFailed(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrderRow(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertOrderRow(ctx context.Context, tx *sqlx.Tx, o *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO orders (order_id, user_id, payment_intent_id, status, total_amount, currency, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.PaymentIntentID, string(o.Status), o.Total.Cents, o.Total.Currency, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("intent %s: %w", o.PaymentIntentID, usecase.ErrDuplicateIntent)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

type orderRow struct {
	ID              string    `db:"order_id"`
	UserID          int64     `db:"user_id"`
	PaymentIntentID string    `db:"payment_intent_id"`
	Status          string    `db:"status"`
	TotalAmount     int64     `db:"total_amount"`
	Currency        string    `db:"currency"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (row orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:              row.ID,
		UserID:          row.UserID,
		PaymentIntentID: row.PaymentIntentID,
		Status:          domain.OrderStatus(row.Status),
		Total:           domain.Money{Cents: row.TotalAmount, Currency: row.Currency},
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func (r *MySQLOrderRepo) GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `
SELECT order_id, user_id, payment_intent_id, status, total_amount, currency, created_at, updated_at
FROM orders WHERE payment_intent_id = ?`, intentID)
	if err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("intent %s: %w", intentID, usecase.ErrNotFound)
		}
		return nil, fmt.Errorf("select order by intent: %w", err)
	}
	o := row.toDomain()
	return &o, nil
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, userID int64, orderID string) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `
SELECT order_id, user_id, payment_intent_id, status, total_amount, currency, created_at, updated_at
FROM orders WHERE order_id = ? AND user_id = ?`, orderID, userID)
	if err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("order %s: %w", orderID, usecase.ErrNotFound)
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o := row.toDomain()
	if err := r.loadChildren(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *MySQLOrderRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, `
SELECT order_id, user_id, payment_intent_id, status, total_amount, currency, created_at, updated_at
FROM orders WHERE user_id = ?
ORDER BY created_at DESC, order_id DESC`, userID); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o := row.toDomain()
		if err := r.loadChildren(ctx, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

type orderItemRow struct {
	ID         int64  `db:"order_item_id"`
	OrderID    string `db:"order_id"`
	ServiceID  int64  `db:"service_id"`
	Title      string `db:"title"`
	Quantity   int64  `db:"quantity"`
	UnitPrice  int64  `db:"unit_price"`
	TotalPrice int64  `db:"total_price"`
}

type orderAddonRow struct {
	ID          int64  `db:"order_addon_id"`
	OrderID     string `db:"order_id"`
	OrderItemID int64  `db:"order_item_id"`
	AddonID     int64  `db:"addon_id"`
	Name        string `db:"name"`
	UnitPrice   int64  `db:"unit_price"`
}

type paymentRow struct {
	ID      string    `db:"payment_id"`
	OrderID string    `db:"order_id"`
	Method  string    `db:"payment_method"`
	Status  string    `db:"payment_status"`
	Amount  int64     `db:"amount"`
	PaidAt  time.Time `db:"payment_date"`
}

func (r *MySQLOrderRepo) loadChildren(ctx context.Context, o *domain.Order) error {
	var items []orderItemRow
	if err := r.db.SelectContext(ctx, &items, `
SELECT oi.order_item_id, oi.order_id, oi.service_id, s.title, oi.quantity, oi.unit_price, oi.total_price
FROM order_items oi
JOIN services s ON oi.service_id = s.service_id
WHERE oi.order_id = ?
ORDER BY oi.order_item_id ASC`, o.ID); err != nil {
		return fmt.Errorf("select order items: %w", err)
	}

	var addons []orderAddonRow
	if err := r.db.SelectContext(ctx, &addons, `
SELECT oa.order_addon_id, oa.order_id, oa.order_item_id, oa.addon_id, sa.name, oa.unit_price
FROM order_addons oa
JOIN service_addons sa ON oa.addon_id = sa.addon_id
WHERE oa.order_id = ?
ORDER BY oa.order_addon_id ASC`, o.ID); err != nil {
		return fmt.Errorf("select order addons: %w", err)
	}
	byItem := make(map[int64][]domain.OrderAddon)
	for _, a := range addons {
		byItem[a.OrderItemID] = append(byItem[a.OrderItemID], domain.OrderAddon{
			ID:          a.ID,
			OrderID:     a.OrderID,
			OrderItemID: a.OrderItemID,
			AddonID:     a.AddonID,
			Name:        a.Name,
			UnitPrice:   a.UnitPrice,
		})
	}

	for _, it := range items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:         it.ID,
			OrderID:    it.OrderID,
			ServiceID:  it.ServiceID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
			Addons:     byItem[it.ID],
		})
	}

	var pay paymentRow
	err := r.db.GetContext(ctx, &pay, `
SELECT payment_id, order_id, payment_method, payment_status, amount, payment_date
FROM payments WHERE order_id = ?`, o.ID)
	if err != nil {
		if noRows(err) {
			return nil // failed orders carry no payment row
		}
		return fmt.Errorf("select payment: %w", err)
	}
	o.Payment = &domain.PaymentRecord{
		ID:      pay.ID,
		OrderID: pay.OrderID,
		Method:  pay.Method,
		Status:  pay.Status,
		Amount:  pay.Amount,
		PaidAt:  pay.PaidAt,
	}
	return nil
}
