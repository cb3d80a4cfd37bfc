package usecase

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/dstein131/Main/internal/entity"
)

// mockCartRepo serves a fixed snapshot per user and records destructive calls.
type mockCartRepo struct {
	mu        sync.Mutex
	snapshots map[int64]domain.CartSnapshot
	owners    map[int64]int64 // cart item id -> owning user

	snapshotErr error
	clearErr    error

	clearedUsers []int64
	addedItems   []domain.CartItem
	updatedQty   map[int64]int64
	removedItems []int64
	nextItemID   int64
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		snapshots:  map[int64]domain.CartSnapshot{},
		owners:     map[int64]int64{},
		updatedQty: map[int64]int64{},
		nextItemID: 100,
	}
}

func (m *mockCartRepo) EnsureCart(_ context.Context, userID int64) (int64, error) {
	return userID * 10, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, _ int64, item *domain.CartItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextItemID++
	m.addedItems = append(m.addedItems, *item)
	return m.nextItemID, nil
}

func (m *mockCartRepo) OwnerOf(_ context.Context, cartItemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[cartItemID]
	if !ok {
		return 0, fmt.Errorf("cart item %d: %w", cartItemID, ErrNotFound)
	}
	return owner, nil
}

func (m *mockCartRepo) UpdateQuantity(_ context.Context, cartItemID, quantity int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatedQty[cartItemID] = quantity
	return nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, cartItemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removedItems = append(m.removedItems, cartItemID)
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clearedUsers = append(m.clearedUsers, userID)
	return nil
}

func (m *mockCartRepo) Snapshot(_ context.Context, userID int64) (domain.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return domain.CartSnapshot{}, m.snapshotErr
	}
	return m.snapshots[userID], nil
}

// mockOrderRepo keeps orders keyed by payment intent id and enforces the
// unique intent constraint the way the real table does.
type mockOrderRepo struct {
	mu       sync.Mutex
	byIntent map[string]*domain.Order

	createErr     error
	settledCalls  int
	failedCalls   int
	lookupByIntnt int

	// missNextLookup makes the next GetByIntentID miss regardless of
	// contents, simulating a row committed between lookup and insert.
	missNextLookup bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byIntent: map[string]*domain.Order{}}
}

func (m *mockOrderRepo) CreateSettled(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settledCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.byIntent[o.PaymentIntentID]; exists {
		return fmt.Errorf("intent %s: %w", o.PaymentIntentID, ErrDuplicateIntent)
	}
	cp := *o
	m.byIntent[o.PaymentIntentID] = &cp
	return nil
}

func (m *mockOrderRepo) CreateFailed(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.byIntent[o.PaymentIntentID]; exists {
		return fmt.Errorf("intent %s: %w", o.PaymentIntentID, ErrDuplicateIntent)
	}
	cp := *o
	m.byIntent[o.PaymentIntentID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByIntentID(_ context.Context, intentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupByIntnt++
	if m.missNextLookup {
		m.missNextLookup = false
		return nil, fmt.Errorf("intent %s: %w", intentID, ErrNotFound)
	}
	o, ok := m.byIntent[intentID]
	if !ok {
		return nil, fmt.Errorf("intent %s: %w", intentID, ErrNotFound)
	}
	return o, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, userID int64, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byIntent {
		if o.ID == orderID && o.UserID == userID {
			return o, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.byIntent {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type catalogEntry struct {
	name  string
	cents int64
}

type mockCatalog struct {
	services map[int64]catalogEntry
	addons   map[int64]catalogEntry
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		services: map[int64]catalogEntry{},
		addons:   map[int64]catalogEntry{},
	}
}

func (m *mockCatalog) ServicePrice(_ context.Context, serviceID int64) (string, int64, error) {
	e, ok := m.services[serviceID]
	if !ok {
		return "", 0, fmt.Errorf("service %d: %w", serviceID, ErrNotFound)
	}
	return e.name, e.cents, nil
}

func (m *mockCatalog) AddonPrice(_ context.Context, addonID int64) (string, int64, error) {
	e, ok := m.addons[addonID]
	if !ok {
		return "", 0, fmt.Errorf("addon %d: %w", addonID, ErrNotFound)
	}
	return e.name, e.cents, nil
}

type mockProvider struct {
	clientSecret string
	intentID     string
	createErr    error

	event     IntentEvent
	verifyErr error

	createCalls int
}

func (m *mockProvider) CreateIntent(_ context.Context, _ int64, _ int64, _ string) (string, string, error) {
	m.createCalls++
	if m.createErr != nil {
		return "", "", m.createErr
	}
	return m.clientSecret, m.intentID, nil
}

func (m *mockProvider) VerifyEvent(_ []byte, _ string) (IntentEvent, error) {
	if m.verifyErr != nil {
		return IntentEvent{}, m.verifyErr
	}
	return m.event, nil
}

type mockEventStore struct {
	mu     sync.Mutex
	seen   map[string]bool
	marked []string

	seenErr error
	markErr error
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{seen: map[string]bool{}}
}

func (m *mockEventStore) Seen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.seen[eventID], nil
}

func (m *mockEventStore) MarkProcessed(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.seen[eventID] = true
	m.marked = append(m.marked, eventID)
	return nil
}
