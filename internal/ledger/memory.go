package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/mrz1836/paytoken/internal/domain"
)

// NewMemory creates a Ledger held in process memory.
func NewMemory(verifier TokenVerifier, opts ...Option) *Ledger {
	return newLedger(&memoryRepo{
		accounts: make(map[string]int64),
		byID:     make(map[string]*domain.LedgerTransaction),
		nonces:   make(map[string]string),
	}, verifier, opts...)
}

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[string]int64
	byID     map[string]*domain.LedgerTransaction
	nonces   map[string]string
	order    []string
}

// atomically runs fn under the lock on a staged copy; changes are applied
// only when fn succeeds.
func (m *memoryRepo) atomically(ctx context.Context, fn func(book) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stage := &memoryBook{repo: m, deltas: make(map[string]int64), created: make(map[string]int64), verified: make(map[string]bool)}
	if err := fn(stage); err != nil {
		return err
	}
	stage.commit()
	return nil
}

func (m *memoryRepo) history(ctx context.Context, uid string, limit int) ([]domain.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.LedgerTransaction, 0)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		tx := m.byID[m.order[i]]
		if tx.FromID == uid || tx.ToID == uid {
			out = append(out, *tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampMs > out[j].TimestampMs })
	return out, nil
}

type memoryBook struct {
	repo     *memoryRepo
	deltas   map[string]int64
	created  map[string]int64
	inserted []*domain.LedgerTransaction
	verified map[string]bool
}

func (b *memoryBook) account(uid string) (int64, bool, error) {
	if opening, ok := b.created[uid]; ok {
		return opening + b.deltas[uid], true, nil
	}
	balance, ok := b.repo.accounts[uid]
	return balance + b.deltas[uid], ok, nil
}

func (b *memoryBook) createAccount(uid string, balance int64) error {
	b.created[uid] = balance
	return nil
}

func (b *memoryBook) adjust(uid string, delta int64) error {
	b.deltas[uid] += delta
	return nil
}

func (b *memoryBook) byNonce(nonce string) (*domain.LedgerTransaction, error) {
	for _, tx := range b.inserted {
		if tx.Nonce == nonce {
			cp := *tx
			return &cp, nil
		}
	}
	id, ok := b.repo.nonces[nonce]
	if !ok {
		return nil, nil
	}
	cp := *b.repo.byID[id]
	if b.verified[id] {
		cp.IsVerified = true
	}
	return &cp, nil
}

func (b *memoryBook) insert(tx *domain.LedgerTransaction) error {
	cp := *tx
	b.inserted = append(b.inserted, &cp)
	return nil
}

func (b *memoryBook) markVerified(id string) error {
	b.verified[id] = true
	return nil
}

func (b *memoryBook) commit() {
	r := b.repo
	for uid, opening := range b.created {
		r.accounts[uid] = opening
	}
	for uid, delta := range b.deltas {
		r.accounts[uid] += delta
	}
	for _, tx := range b.inserted {
		r.byID[tx.ID] = tx
		r.nonces[tx.Nonce] = tx.ID
		r.order = append(r.order, tx.ID)
	}
	for id := range b.verified {
		if tx, ok := r.byID[id]; ok {
			tx.IsVerified = true
		}
	}
}
