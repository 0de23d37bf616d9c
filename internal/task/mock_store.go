package task

import (
	"context"
	"sync"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/store"
)

// MockOrderStore wraps a real store.OrderStore and lets tests override single
// operations. A nil Fn field delegates to the wrapped store.
type MockOrderStore struct {
	store.OrderStore

	mutex        sync.Mutex
	reserveCalls int

	ReserveFn   func(ctx context.Context, order domain.Order, followUps []string) (domain.Reservation, error)
	OutboxFn    func(ctx context.Context, orderID int64) ([]string, error)
	AckOutboxFn func(ctx context.Context, orderID int64, entry string) error
}

// NewMockOrderStore creates a MockOrderStore delegating to inner.
func NewMockOrderStore(inner store.OrderStore) *MockOrderStore {
	return &MockOrderStore{OrderStore: inner}
}

// Reserve records the call and delegates unless ReserveFn is set.
func (m *MockOrderStore) Reserve(
	ctx context.Context,
	order domain.Order,
	followUps []string,
) (domain.Reservation, error) {
	m.mutex.Lock()
	m.reserveCalls++
	fn := m.ReserveFn
	m.mutex.Unlock()

	if fn != nil {
		return fn(ctx, order, followUps)
	}
	return m.OrderStore.Reserve(ctx, order, followUps)
}

// ReserveCalls returns how many times Reserve was called.
func (m *MockOrderStore) ReserveCalls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.reserveCalls
}

// Outbox delegates unless OutboxFn is set.
func (m *MockOrderStore) Outbox(ctx context.Context, orderID int64) ([]string, error) {
	if m.OutboxFn != nil {
		return m.OutboxFn(ctx, orderID)
	}
	return m.OrderStore.Outbox(ctx, orderID)
}

// AckOutbox delegates unless AckOutboxFn is set.
func (m *MockOrderStore) AckOutbox(ctx context.Context, orderID int64, entry string) error {
	if m.AckOutboxFn != nil {
		return m.AckOutboxFn(ctx, orderID, entry)
	}
	return m.OrderStore.AckOutbox(ctx, orderID, entry)
}
