package domain

// BalanceRecord is the locally cached, non-authoritative balance of a user.
type BalanceRecord struct {
	UID string `json:"uid"`

	// Known is the last ledger balance minus payments authorized since.
	Known int64 `json:"known"`

	// RefreshedAtMs is when Known was last replaced by the ledger's value.
	// Zero means the balance has never been fetched.
	RefreshedAtMs int64 `json:"refreshed_at_ms,omitempty"`

	// UpdatedAtMs is the last local change of any kind.
	UpdatedAtMs int64 `json:"updated_at_ms"`
}
