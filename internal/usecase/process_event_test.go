package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	domain "github.com/dstein131/Main/internal/entity"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(provider *mockProvider, carts *mockCartRepo, orders *mockOrderRepo, store *mockEventStore) *ProcessEvent {
	return NewProcessEvent(provider, orders, NewMaterializer(carts, orders), store)
}

func TestProcessEvent_BadSignature(t *testing.T) {
	provider := &mockProvider{verifyErr: errors.New("signature mismatch")}
	uc := newProcessor(provider, newMockCartRepo(), newMockOrderRepo(), newMockEventStore())

	err := uc.Execute(context.Background(), []byte(`{}`), "t=1,v1=bad")

	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProcessEvent_SucceededSettlesOnce(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()
	store := newMockEventStore()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, store)

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	stored, err := orders.GetByIntentID(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)
	assert.Equal(t, []string{"evt_1"}, store.marked)

	// Same event id redelivered: short-circuited by the marker, no new lookup work.
	lookupsBefore := orders.lookupByIntnt
	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))
	assert.Equal(t, lookupsBefore, orders.lookupByIntnt)
}

func TestProcessEvent_RedeliveryWithFreshEventID(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, newMockEventStore())

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	// Same intent under a new event id: the existing order absorbs it.
	provider.event.ID = "evt_2"
	carts.snapshots[7] = snapshotWithItems(7)
	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	list, err := orders.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, orders.settledCalls)
}

func TestProcessEvent_FailedRecordsFailedOrder(t *testing.T) {
	orders := newMockOrderRepo()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentFailed, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, newMockCartRepo(), orders, newMockEventStore())

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	stored, err := orders.GetByIntentID(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, stored.Status)
	assert.Empty(t, stored.Items)
}

func TestProcessEvent_FirstTerminalOutcomeWins(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, newMockEventStore())

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	// A contradictory failure event for the settled intent is a no-op.
	provider.event = IntentEvent{
		ID: "evt_2", Type: EventIntentFailed, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}
	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	stored, err := orders.GetByIntentID(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, stored.Status)
	assert.Zero(t, orders.failedCalls)
}

func TestProcessEvent_RacingFailureWinDoesNotCountAsSettled(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()

	// The failed order commits after the success path's lookup misses but
	// before its insert, so CreateSettled hits the unique constraint.
	failed := &domain.Order{ID: "ord_failed", UserID: 7, PaymentIntentID: "pi_abc", Status: domain.OrderStatusFailed}
	require.NoError(t, orders.CreateFailed(context.Background(), failed))
	orders.missNextLookup = true

	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, newMockEventStore())

	settledBefore := testutil.ToFloat64(ordersSettled)
	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	stored, err := orders.GetByIntentID(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, stored.Status)
	assert.Equal(t, settledBefore, testutil.ToFloat64(ordersSettled))
}

func TestProcessEvent_FailureBeforeSuccessStaysFailed(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentFailed, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, newMockEventStore())

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	provider.event = IntentEvent{
		ID: "evt_2", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}
	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	stored, err := orders.GetByIntentID(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, stored.Status)
}

func TestProcessEvent_MaterializeFailureIsNotAcknowledged(t *testing.T) {
	carts := newMockCartRepo() // empty cart => materialize fails
	orders := newMockOrderRepo()
	store := newMockEventStore()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, store)

	err := uc.Execute(context.Background(), []byte(`{}`), "sig")

	assert.ErrorIs(t, err, ErrFailedPrecondition)
	// Marker untouched so the provider's redelivery takes the full path again.
	assert.Empty(t, store.marked)
}

func TestProcessEvent_CreatedAndUnknownTypesAreAcknowledged(t *testing.T) {
	orders := newMockOrderRepo()
	store := newMockEventStore()
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentCreated, IntentID: "pi_abc", UserID: 7,
	}}
	uc := newProcessor(provider, newMockCartRepo(), orders, store)

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	provider.event = IntentEvent{ID: "evt_2", Type: "charge.refunded", IntentID: "pi_abc"}
	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	assert.Zero(t, orders.settledCalls)
	assert.Zero(t, orders.failedCalls)
	assert.Equal(t, []string{"evt_1", "evt_2"}, store.marked)
}

func TestProcessEvent_MarkerStoreOutageDoesNotBlockSettlement(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()
	store := newMockEventStore()
	store.seenErr = errors.New("redis down")
	store.markErr = errors.New("redis down")
	provider := &mockProvider{event: IntentEvent{
		ID: "evt_1", Type: EventIntentSucceeded, IntentID: "pi_abc", UserID: 7, Amount: 300000, Currency: "usd",
	}}
	uc := newProcessor(provider, carts, orders, store)

	require.NoError(t, uc.Execute(context.Background(), []byte(`{}`), "sig"))

	_, err := orders.GetByIntentID(context.Background(), "pi_abc")
	assert.NoError(t, err)
}

func TestProcessEvent_ConcurrentDeliveriesSettleOneOrder(t *testing.T) {
	carts := newMockCartRepo()
	carts.snapshots[7] = snapshotWithItems(7)
	orders := newMockOrderRepo()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			provider := &mockProvider{event: IntentEvent{
				ID:       fmt.Sprintf("evt_%d", i),
				Type:     EventIntentSucceeded,
				IntentID: "pi_abc",
				UserID:   7,
				Amount:   300000,
				Currency: "usd",
			}}
			uc := newProcessor(provider, carts, orders, newMockEventStore())
			errs[i] = uc.Execute(context.Background(), []byte(`{}`), "sig")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "delivery %d", i)
	}
	list, err := orders.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
