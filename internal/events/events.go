// Package events carries notifications about identities, payments, claims and
// balances to interested observers, decoupled from any rendering concern.
package events

import (
	"context"
	"sync"
)

// Type names an event.
type Type string

// Event types.
const (
	IdentityProvisioned Type = "identity.provisioned"
	PaymentAuthorized   Type = "payment.authorized"
	PaymentSynced       Type = "payment.synced"
	PaymentSyncFailed   Type = "payment.sync_failed"
	ClaimSettled        Type = "claim.settled"
	ClaimQueued         Type = "claim.queued"
	ClaimFailed         Type = "claim.failed"
	BalanceDebited      Type = "balance.debited"
	BalanceRefreshed    Type = "balance.refreshed"
)

// Event is a single notification.
type Event struct {
	Type    Type   `json:"type"`
	UID     string `json:"uid"`
	Nonce   string `json:"nonce,omitempty"`
	ClaimID string `json:"claimId,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	Balance int64  `json:"balance,omitempty"`
	Error   string `json:"error,omitempty"`
	AtMs    int64  `json:"atMs"`
}

// Publisher publishes events. Publishing must not block on slow observers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
