package repo

import (
	"context"
	"fmt"

	domain "github.com/dstein131/Main/internal/entity"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/jmoiron/sqlx"
)

type MySQLCartRepo struct{ db *sqlx.DB }

func NewMySQLCartRepo(db *sqlx.DB) *MySQLCartRepo { return &MySQLCartRepo{db: db} }

var _ usecase.CartRepo = (*MySQLCartRepo)(nil)

// EnsureCart is insert-or-fetch under the unique key on carts.user_id.
// Two concurrent calls race on the insert; the loser's 1062 resolves to the
// winner's row.
func (r *MySQLCartRepo) EnsureCart(ctx context.Context, userID int64) (int64, error) {
	var cartID int64
	err := r.db.GetContext(ctx, &cartID, `SELECT cart_id FROM carts WHERE user_id = ?`, userID)
	if err == nil {
		return cartID, nil
	}
	if !noRows(err) {
		return 0, fmt.Errorf("select cart: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES (?)`, userID)
	if err != nil {
		if isDuplicate(err) {
			if err := r.db.GetContext(ctx, &cartID, `SELECT cart_id FROM carts WHERE user_id = ?`, userID); err != nil {
				return 0, fmt.Errorf("select cart after insert race: %w", err)
			}
			return cartID, nil
		}
		return 0, fmt.Errorf("insert cart: %w", err)
	}
	return res.LastInsertId()
}

func (r *MySQLCartRepo) AddItem(ctx context.Context, cartID int64, item *domain.CartItem) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
INSERT INTO cart_items (cart_id, service_id, quantity, unit_price)
VALUES (?, ?, ?, ?)`,
		cartID, item.ServiceID, item.Quantity, item.UnitPrice)
	if err != nil {
		return 0, fmt.Errorf("insert cart item: %w", err)
	}
	itemID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, ad := range item.Addons {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cart_item_addons (cart_item_id, addon_id, unit_price)
VALUES (?, ?, ?)`,
			itemID, ad.AddonID, ad.UnitPrice); err != nil {
			return 0, fmt.Errorf("insert cart item addon: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return itemID, nil
}

func (r *MySQLCartRepo) OwnerOf(ctx context.Context, cartItemID int64) (int64, error) {
	var userID int64
	err := r.db.GetContext(ctx, &userID, `
SELECT c.user_id
FROM cart_items ci
JOIN carts c ON ci.cart_id = c.cart_id
WHERE ci.cart_item_id = ?`, cartItemID)
	if err != nil {
		if noRows(err) {
			return 0, fmt.Errorf("cart item %d: %w", cartItemID, usecase.ErrNotFound)
		}
		return 0, fmt.Errorf("select cart item owner: %w", err)
	}
	return userID, nil
}

// UpdateQuantity does not inspect affected rows: MySQL reports zero for a
// value-identical update, so re-submitting the current quantity would look
// like a missing row. Existence and ownership are checked by OwnerOf first.
func (r *MySQLCartRepo) UpdateQuantity(ctx context.Context, cartItemID, quantity int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE cart_items SET quantity = ?, updated_at = NOW() WHERE cart_item_id = ?`,
		quantity, cartItemID)
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	return nil
}

func (r *MySQLCartRepo) RemoveItem(ctx context.Context, cartItemID int64) error {
	// cart_item_addons goes with it via ON DELETE CASCADE
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_item_id = ?`, cartItemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("cart item %d: %w", cartItemID, usecase.ErrNotFound)
	}
	return nil
}

// Clear deletes all items of the user's cart in one transaction. A missing
// cart is a no-op, not an error.
func (r *MySQLCartRepo) Clear(ctx context.Context, userID int64) error {
	var cartID int64
	err := r.db.GetContext(ctx, &cartID, `SELECT cart_id FROM carts WHERE user_id = ?`, userID)
	if err != nil {
		if noRows(err) {
			return nil
		}
		return fmt.Errorf("select cart: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	return tx.Commit()
}

type cartItemRow struct {
	ID        int64  `db:"cart_item_id"`
	CartID    int64  `db:"cart_id"`
	ServiceID int64  `db:"service_id"`
	Title     string `db:"title"`
	Quantity  int64  `db:"quantity"`
	UnitPrice int64  `db:"unit_price"`
}

type cartAddonRow struct {
	ID         int64  `db:"cart_item_addon_id"`
	CartItemID int64  `db:"cart_item_id"`
	AddonID    int64  `db:"addon_id"`
	Name       string `db:"name"`
	UnitPrice  int64  `db:"unit_price"`
}

func (r *MySQLCartRepo) Snapshot(ctx context.Context, userID int64) (domain.CartSnapshot, error) {
	snap := domain.CartSnapshot{UserID: userID}

	err := r.db.GetContext(ctx, &snap.CartID, `SELECT cart_id FROM carts WHERE user_id = ?`, userID)
	if err != nil {
		if noRows(err) {
			return snap, nil // lazily-created cart that does not exist yet
		}
		return snap, fmt.Errorf("select cart: %w", err)
	}

	var items []cartItemRow
	if err := r.db.SelectContext(ctx, &items, `
SELECT ci.cart_item_id, ci.cart_id, ci.service_id, s.title, ci.quantity, ci.unit_price
FROM cart_items ci
JOIN services s ON ci.service_id = s.service_id
WHERE ci.cart_id = ?
ORDER BY ci.created_at ASC, ci.cart_item_id ASC`, snap.CartID); err != nil {
		return snap, fmt.Errorf("select cart items: %w", err)
	}
	if len(items) == 0 {
		return snap, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	query, args, err := sqlx.In(`
SELECT cia.cart_item_addon_id, cia.cart_item_id, cia.addon_id, sa.name, cia.unit_price
FROM cart_item_addons cia
JOIN service_addons sa ON cia.addon_id = sa.addon_id
WHERE cia.cart_item_id IN (?)
ORDER BY cia.created_at ASC, cia.cart_item_addon_id ASC`, ids)
	if err != nil {
		return snap, fmt.Errorf("addon query: %w", err)
	}
	var addons []cartAddonRow
	if err := r.db.SelectContext(ctx, &addons, r.db.Rebind(query), args...); err != nil {
		return snap, fmt.Errorf("select cart addons: %w", err)
	}

	byItem := make(map[int64][]domain.CartItemAddon, len(items))
	for _, a := range addons {
		byItem[a.CartItemID] = append(byItem[a.CartItemID], domain.CartItemAddon{
			ID:         a.ID,
			CartItemID: a.CartItemID,
			AddonID:    a.AddonID,
			Name:       a.Name,
			UnitPrice:  a.UnitPrice,
		})
	}
	for _, it := range items {
		snap.Items = append(snap.Items, domain.CartItem{
			ID:        it.ID,
			CartID:    it.CartID,
			ServiceID: it.ServiceID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Addons:    byItem[it.ID],
		})
	}
	return snap, nil
}
