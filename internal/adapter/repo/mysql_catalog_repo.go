package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dstein131/Main/internal/usecase"
	"github.com/jmoiron/sqlx"
)

// MySQLCatalogRepo is the read-only view of the catalog. Prices live in
// minor units; a NULL price means the service cannot be carted.
type MySQLCatalogRepo struct{ db *sqlx.DB }

func NewMySQLCatalogRepo(db *sqlx.DB) *MySQLCatalogRepo { return &MySQLCatalogRepo{db: db} }

var _ usecase.CatalogReader = (*MySQLCatalogRepo)(nil)

func (r *MySQLCatalogRepo) ServicePrice(ctx context.Context, serviceID int64) (string, int64, error) {
	var row struct {
		Title string        `db:"title"`
		Price sql.NullInt64 `db:"price_cents"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT title, price_cents FROM services WHERE service_id = ?`, serviceID)
	if err != nil {
		if noRows(err) {
			return "", 0, fmt.Errorf("service %d: %w", serviceID, usecase.ErrNotFound)
		}
		return "", 0, fmt.Errorf("select service: %w", err)
	}
	if !row.Price.Valid {
		return "", 0, fmt.Errorf("service %d has no price: %w", serviceID, usecase.ErrNotFound)
	}
	return row.Title, row.Price.Int64, nil
}

func (r *MySQLCatalogRepo) AddonPrice(ctx context.Context, addonID int64) (string, int64, error) {
	var row struct {
		Name  string        `db:"name"`
		Price sql.NullInt64 `db:"price_cents"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT name, price_cents FROM service_addons WHERE addon_id = ?`, addonID)
	if err != nil {
		if noRows(err) {
			return "", 0, fmt.Errorf("addon %d: %w", addonID, usecase.ErrNotFound)
		}
		return "", 0, fmt.Errorf("select addon: %w", err)
	}
	if !row.Price.Valid {
		return "", 0, fmt.Errorf("addon %d has no price: %w", addonID, usecase.ErrNotFound)
	}
	return row.Name, row.Price.Int64, nil
}
