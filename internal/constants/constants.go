// Package constants provides centralized constant values used throughout paytoken.
// This package is the single source of truth for shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Payment token parameters.
const (
	// NonceLength is the number of characters in a payment intent nonce.
	NonceLength = 12

	// NonceAlphabet is the character set nonces are drawn from.
	NonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// TokenQueryParam is the URI query parameter that carries an encoded token.
	TokenQueryParam = "token"
)

// Claim reconciliation defaults.
const (
	// DefaultSweepInterval is how often queued claims are reconciled against the ledger.
	DefaultSweepInterval = 30 * time.Second

	// DefaultConnectivityInterval is how often connectivity is checked while watching for regain.
	DefaultConnectivityInterval = 10 * time.Second

	// DefaultSettleTimeout bounds a single ledger settle call.
	DefaultSettleTimeout = 15 * time.Second

	// DefaultLockTimeout bounds file lock acquisition in the local stores.
	DefaultLockTimeout = 5 * time.Second

	// DefaultSyncTimeout bounds the best-effort ledger sync after authorization.
	DefaultSyncTimeout = 10 * time.Second

	// DefaultHTTPTimeout bounds calls to the ledger and the trust authority.
	DefaultHTTPTimeout = 10 * time.Second
)

// Directory and file names.
const (
	// HomeDir is the hidden directory under the user's home where paytoken keeps its data.
	HomeDir = ".paytoken"

	// UsersDir holds one subdirectory per user id.
	UsersDir = "users"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// KeysDir holds the reference server's trust-anchor key.
	KeysDir = "keys"

	// IdentityFileName stores the user's key record.
	IdentityFileName = "identity.json"

	// ClaimsFileName stores the user's pending claim queue.
	ClaimsFileName = "claims.json"

	// BalanceFileName stores the user's last known balance.
	BalanceFileName = "balance.json"

	// AnchorFileName stores the trust-anchor public key in hex.
	AnchorFileName = "anchor.pub"

	// LedgerDBFileName is the reference server's SQLite database.
	LedgerDBFileName = "ledger.db"

	// CLILogFileName is the name of the rotating CLI log file.
	CLILogFileName = "paytoken.log"

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "PAYTOKEN"
)

// Log rotation settings.
const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 28
	LogCompress   = true
)

// Reference server defaults.
const (
	// DefaultServerAddr is where 'paytoken serve' listens.
	DefaultServerAddr = "127.0.0.1:8420"

	// DefaultOpeningBalance is credited to every account the reference server opens.
	DefaultOpeningBalance = 1000

	// DefaultIssuer is the certificate issuer name of the reference Trust Authority.
	DefaultIssuer = "paytoken-authority"

	// DefaultEventBuffer is the per-subscriber channel buffer of the event bus.
	DefaultEventBuffer = 64
)
