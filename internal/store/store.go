// Package store persists per-user device state: the key record, the pending
// claim queue and the last known balance.
//
// Three backends share the same interfaces. FileStore keeps one directory per
// user under the data dir and serializes writers with an OS file lock.
// RedisStore uses optimistic WATCH transactions for multi-device setups.
// MemoryStore backs tests and the reference server. SealedKeyStore wraps any
// KeyStore and encrypts private keys at rest.
package store

import (
	"context"

	"github.com/mrz1836/paytoken/internal/domain"
)

// KeyStore persists one key record per user id.
type KeyStore interface {
	// GetKey returns the record for uid or ErrKeyNotFound.
	GetKey(ctx context.Context, uid string) (*domain.KeyRecord, error)

	// PutKey creates or replaces the record for rec.UID.
	PutKey(ctx context.Context, rec *domain.KeyRecord) error
}

// ClaimQueueStore persists each user's pending claim queue.
type ClaimQueueStore interface {
	// ListClaims returns a snapshot of the queue in enqueue order.
	// An unknown user has an empty queue.
	ListClaims(ctx context.Context, uid string) ([]domain.PendingClaim, error)

	// UpdateClaims performs an atomic read-modify-write of the queue. The
	// modifier receives the current entries and returns the new ones. A
	// modifier error aborts the write and is returned unchanged.
	UpdateClaims(ctx context.Context, uid string, modifier func([]domain.PendingClaim) ([]domain.PendingClaim, error)) error
}

// BalanceStore persists each user's last known balance.
type BalanceStore interface {
	// GetBalance returns the record for uid. An unknown user has a zero
	// record with RefreshedAtMs unset.
	GetBalance(ctx context.Context, uid string) (*domain.BalanceRecord, error)

	// UpdateBalance performs an atomic read-modify-write of the record.
	UpdateBalance(ctx context.Context, uid string, modifier func(*domain.BalanceRecord) error) error
}

// Store is the full set of device persistence.
type Store interface {
	KeyStore
	ClaimQueueStore
	BalanceStore
}

func cloneClaims(in []domain.PendingClaim) []domain.PendingClaim {
	if len(in) == 0 {
		return []domain.PendingClaim{}
	}
	out := make([]domain.PendingClaim, len(in))
	copy(out, in)
	return out
}
