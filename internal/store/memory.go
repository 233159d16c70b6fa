package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// MemoryStore implements Store in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	keys     map[string]domain.KeyRecord
	claims   map[string][]domain.PendingClaim
	balances map[string]domain.BalanceRecord
	clock    clock.Clock
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:     make(map[string]domain.KeyRecord),
		claims:   make(map[string][]domain.PendingClaim),
		balances: make(map[string]domain.BalanceRecord),
		clock:    clock.RealClock{},
	}
}

// GetKey returns a copy of the key record for uid.
func (m *MemoryStore) GetKey(_ context.Context, uid string) (*domain.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.keys[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", payerrors.ErrKeyNotFound, uid)
	}
	return &rec, nil
}

// PutKey stores a copy of rec.
func (m *MemoryStore) PutKey(_ context.Context, rec *domain.KeyRecord) error {
	if rec == nil || rec.UID == "" {
		return fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	m.mu.Lock()
	m.keys[rec.UID] = *rec
	m.mu.Unlock()
	return nil
}

// ListClaims returns a copy of the queue for uid.
func (m *MemoryStore) ListClaims(_ context.Context, uid string) ([]domain.PendingClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneClaims(m.claims[uid]), nil
}

// UpdateClaims applies modifier to the queue for uid under the store lock.
func (m *MemoryStore) UpdateClaims(_ context.Context, uid string, modifier func([]domain.PendingClaim) ([]domain.PendingClaim, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := modifier(cloneClaims(m.claims[uid]))
	if err != nil {
		return err
	}
	m.claims[uid] = cloneClaims(next)
	return nil
}

// GetBalance returns a copy of the balance record for uid.
func (m *MemoryStore) GetBalance(_ context.Context, uid string) (*domain.BalanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.balances[uid]
	if !ok {
		rec = domain.BalanceRecord{UID: uid}
	}
	return &rec, nil
}

// UpdateBalance applies modifier to the balance record for uid under the store lock.
func (m *MemoryStore) UpdateBalance(_ context.Context, uid string, modifier func(*domain.BalanceRecord) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.balances[uid]
	if !ok {
		rec = domain.BalanceRecord{UID: uid}
	}
	if err := modifier(&rec); err != nil {
		return err
	}
	rec.UpdatedAtMs = clock.Millis(m.clock)
	m.balances[uid] = rec
	return nil
}

var _ Store = (*MemoryStore)(nil)
