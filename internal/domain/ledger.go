package domain

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	// TransactionTransfer is a transfer submitted directly by the payer.
	TransactionTransfer TransactionType = "transfer"

	// TransactionClaim is a transfer created by settling a token no transfer existed for.
	TransactionClaim TransactionType = "claim"
)

// LedgerTransaction is a transaction record owned by the ledger.
type LedgerTransaction struct {
	ID          string          `json:"id"`
	FromID      string          `json:"fromId"`
	ToID        string          `json:"toId"`
	Amount      int64           `json:"amount"`
	Type        TransactionType `json:"type"`
	Memo        string          `json:"memo,omitempty"`
	Nonce       string          `json:"nonce"`
	TimestampMs int64           `json:"timestamp"`
	IsVerified  bool            `json:"isVerified"`
}

// SettlementResult is the ledger's answer to a settle call.
type SettlementResult struct {
	Transaction LedgerTransaction `json:"transaction"`

	// Replayed is true when the nonce was already settled and nothing changed.
	Replayed bool `json:"replayed"`
}
