package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/dstein131/Main/internal/entity"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sqlx.DB, func()) {
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx,
		"mysql:8.0",
		tcmysql.WithDatabase("payments_test"),
		tcmysql.WithUsername("testuser"),
		tcmysql.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("ready for connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true", "multiStatements=true")
	require.NoError(t, err)

	db, err := Connect(ctx, dsn, 5, 5, time.Minute)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db))

	cleanup := func() {
		_ = db.Close()
		if err := ctr.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

// seedCatalog inserts the services and addons the fixtures below reference.
// Service 11 carries a NULL price and cannot be carted.
func seedCatalog(t *testing.T, db *sqlx.DB) {
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `
INSERT INTO services (service_id, title, price_cents) VALUES
  (10, 'Site Build', 250000),
  (11, 'Retainer', NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
INSERT INTO service_addons (addon_id, service_id, name, price_cents) VALUES
  (100, 10, 'Rush Delivery', 50000)`)
	require.NoError(t, err)
}

func settledOrder(intentID string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Order{
		ID:              uuid.NewString(),
		UserID:          7,
		PaymentIntentID: intentID,
		Status:          domain.OrderStatusCompleted,
		Total:           domain.Money{Cents: 300000, Currency: "usd"},
		CreatedAt:       now,
		UpdatedAt:       now,
		Items: []domain.OrderItem{{
			ServiceID:  10,
			Quantity:   1,
			UnitPrice:  250000,
			TotalPrice: 250000,
			Addons:     []domain.OrderAddon{{AddonID: 100, UnitPrice: 50000}},
		}},
		Payment: &domain.PaymentRecord{
			ID:     uuid.NewString(),
			Method: "card",
			Status: "succeeded",
			Amount: 300000,
			PaidAt: now,
		},
	}
}

func TestCreateSettled_PersistsOrderWithChildrenAndOutbox(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, db)

	ctx := context.Background()
	orders := NewMySQLOrderRepo(db)
	o := settledOrder("pi_settle_1")

	require.NoError(t, orders.CreateSettled(ctx, o))

	got, err := orders.GetByID(ctx, 7, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, got.Status)
	assert.Equal(t, "pi_settle_1", got.PaymentIntentID)
	assert.Equal(t, int64(300000), got.Total.Cents)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Site Build", got.Items[0].Title)
	require.Len(t, got.Items[0].Addons, 1)
	assert.Equal(t, "Rush Delivery", got.Items[0].Addons[0].Name)
	require.NotNil(t, got.Payment)
	assert.Equal(t, "succeeded", got.Payment.Status)

	// The outbox row commits with the order, in the same transaction.
	events, err := NewMySQLOutboxRepo(db).FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order.settled", events[0].Channel)
}

func TestCreateSettled_DuplicateIntent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, db)

	ctx := context.Background()
	orders := NewMySQLOrderRepo(db)

	require.NoError(t, orders.CreateSettled(ctx, settledOrder("pi_dup")))

	err := orders.CreateSettled(ctx, settledOrder("pi_dup"))
	assert.ErrorIs(t, err, usecase.ErrDuplicateIntent)

	// The loser leaves nothing behind; exactly one order holds the intent.
	var count int
	require.NoError(t, db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM orders WHERE payment_intent_id = ?`, "pi_dup"))
	assert.Equal(t, 1, count)
}

func TestCreateSettled_RollsBackOnChildInsertFailure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, db)

	ctx := context.Background()
	orders := NewMySQLOrderRepo(db)

	// Quantity zero violates the order_items check constraint after the
	// parent order row has already been inserted.
	o := settledOrder("pi_rollback")
	o.Items[0].Quantity = 0

	err := orders.CreateSettled(ctx, o)
	require.Error(t, err)

	_, err = orders.GetByIntentID(ctx, "pi_rollback")
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM outbox`))
	assert.Equal(t, 0, count)
}

func TestEnsureCart_ConvergesOnOneCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	carts := NewMySQLCartRepo(db)

	first, err := carts.EnsureCart(ctx, 42)
	require.NoError(t, err)
	second, err := carts.EnsureCart(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Concurrent callers race on the insert; every loser resolves to the
	// winner's row through the unique key on user_id.
	ids := make([]int64, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := carts.EnsureCart(ctx, 99)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestClear_CascadesItemAddons(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, db)

	ctx := context.Background()
	carts := NewMySQLCartRepo(db)

	cartID, err := carts.EnsureCart(ctx, 7)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, cartID, &domain.CartItem{
		ServiceID: 10,
		Quantity:  2,
		UnitPrice: 250000,
		Addons:    []domain.CartItemAddon{{AddonID: 100, UnitPrice: 50000}},
	})
	require.NoError(t, err)

	require.NoError(t, carts.Clear(ctx, 7))

	snap, err := carts.Snapshot(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM cart_item_addons`))
	assert.Equal(t, 0, count)
}

func TestUpdateQuantity_SameValueIsNoError(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, db)

	ctx := context.Background()
	carts := NewMySQLCartRepo(db)

	cartID, err := carts.EnsureCart(ctx, 7)
	require.NoError(t, err)
	itemID, err := carts.AddItem(ctx, cartID, &domain.CartItem{
		ServiceID: 10,
		Quantity:  2,
		UnitPrice: 250000,
	})
	require.NoError(t, err)

	// MySQL reports zero affected rows for a value-identical update; the
	// row still exists, so this is not a missing item.
	require.NoError(t, carts.UpdateQuantity(ctx, itemID, 2))

	require.NoError(t, carts.UpdateQuantity(ctx, itemID, 3))
	snap, err := carts.Snapshot(ctx, 7)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(3), snap.Items[0].Quantity)
}

func TestCatalog_NullPriceIsNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, db)

	ctx := context.Background()
	catalog := NewMySQLCatalogRepo(db)

	title, cents, err := catalog.ServicePrice(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Site Build", title)
	assert.Equal(t, int64(250000), cents)

	_, _, err = catalog.ServicePrice(ctx, 11)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}
