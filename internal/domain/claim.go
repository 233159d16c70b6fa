package domain

// ClaimStatus represents the state of a queued claim.
//
// State machine:
//
//	pending -> success
//	pending -> failed
//
// success and failed are terminal.
type ClaimStatus string

const (
	// ClaimPending is waiting for the next reconciliation sweep.
	ClaimPending ClaimStatus = "pending"

	// ClaimSuccess was settled by the ledger.
	ClaimSuccess ClaimStatus = "success"

	// ClaimFailed was rejected by the ledger and is never retried.
	ClaimFailed ClaimStatus = "failed"
)

// String returns the string representation of the status.
func (s ClaimStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimSuccess || s == ClaimFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	return s == ClaimPending && next.IsTerminal()
}

// PendingClaim is an entry in a user's durable claim queue.
type PendingClaim struct {
	// ID identifies the entry within the queue.
	ID string `json:"id"`

	// TokenStr is the encoded token to settle.
	TokenStr string `json:"token"`

	// Nonce, Amount and SenderID are copied from the verified intent for display.
	Nonce    string `json:"nonce"`
	Amount   int64  `json:"amount"`
	SenderID string `json:"senderId"`

	EnqueuedAtMs int64       `json:"enqueuedAtMs"`
	Status       ClaimStatus `json:"status"`

	// Error holds the ledger's rejection for failed claims.
	Error string `json:"error,omitempty"`

	// SettledAtMs is when the claim reached a terminal state.
	SettledAtMs int64 `json:"settledAtMs,omitempty"`

	// TransactionID is the ledger transaction of a successful claim.
	TransactionID string `json:"transactionId,omitempty"`
}
