// Package errors provides centralized error handling for paytoken.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
// Category errors (ErrAuthorization, ErrVerification, ErrSettlement) are joined with
// a kind error via Kind so callers can match at either granularity.
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Error categories. Every failure surfaced by a payment operation matches one of these.
var (
	// ErrProvisioning indicates that the Trust Authority was unreachable or
	// rejected a certificate request. It is never retried automatically.
	ErrProvisioning = errors.New("identity provisioning failed")

	// ErrAuthorization indicates a local precondition failure before a payment was signed.
	ErrAuthorization = errors.New("payment authorization failed")

	// ErrVerification indicates that a payment token could not be verified offline.
	ErrVerification = errors.New("token verification failed")

	// ErrSettlement indicates that the ledger rejected a settlement.
	ErrSettlement = errors.New("settlement rejected")
)

// Authorization kinds.
var (
	// ErrIdentityRequired indicates that no certified identity with a local private key exists.
	ErrIdentityRequired = errors.New("identity required")

	// ErrInsufficientBalance indicates that the amount is not positive or exceeds
	// the locally known balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOutOfRange indicates that the amount falls outside a payment request's allowed range.
	ErrOutOfRange = errors.New("amount out of range")
)

// Verification kinds.
var (
	// ErrMalformedToken indicates that a token could not be decoded.
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidCertificate indicates that the embedded certificate does not
	// validate against the trust anchor.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrInvalidSignature indicates that the signature does not match the
	// canonical payment intent and the certified public key.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Settlement kinds.
var (
	// ErrAlreadySettled indicates that a token's nonce was settled for a different claim.
	ErrAlreadySettled = errors.New("already settled")

	// ErrUnknownParty indicates that the sender or recipient has no ledger account.
	ErrUnknownParty = errors.New("unknown party")

	// ErrInsufficientFunds indicates that the sender's authoritative balance cannot cover the payment.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWrongClaimant indicates that a token addressed to one recipient was claimed by another.
	ErrWrongClaimant = errors.New("token addressed to a different recipient")
)

// Infrastructure errors.
var (
	// ErrLedgerUnavailable indicates that the ledger could not be reached.
	// It is a transport failure, not a ledger verdict.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrAuthorityUnavailable indicates that the Trust Authority could not be reached.
	ErrAuthorityUnavailable = errors.New("trust authority unavailable")

	// ErrKeyNotFound indicates that no key record exists for a user.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey indicates that key material could not be parsed.
	ErrInvalidKey = errors.New("invalid key")

	// ErrSealed indicates that a sealed private key could not be opened,
	// usually because of a wrong passphrase.
	ErrSealed = errors.New("sealed key could not be opened")

	// ErrTrustAnchorMissing indicates that no trust anchor public key is configured.
	ErrTrustAnchorMissing = errors.New("trust anchor not configured")

	// ErrInvalidPaymentRequest indicates that a payment-request URI could not be decoded.
	ErrInvalidPaymentRequest = errors.New("invalid payment request")

	// ErrLockTimedOut indicates that a store lock could not be acquired in time.
	ErrLockTimedOut = errors.New("lock acquisition timed out")

	// ErrClaimExists indicates that a token nonce is already queued for the user.
	ErrClaimExists = errors.New("claim already queued")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")
)

// Configuration errors.
var (
	// ErrConfigInvalid indicates that a configuration value failed validation.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrConfigNotFound indicates that a required configuration value is missing.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrInvalidOutputFormat indicates an unsupported --output value.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)

// ExitCode2Error wraps an error to indicate exit code 2 (invalid input) should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
