// Package crypto defines the signing interfaces shared by the member key
// backend (secp) and the trust-anchor backend (anchor).
package crypto

import "context"

// Signer signs canonical payment bytes with a private key that never
// leaves the device. Signing the same message twice yields the same
// signature.
type Signer interface {
	Verifier

	Sign(ctx context.Context, message []byte) ([]byte, error)

	// PublicKeyHex is the hex public key as it appears in certificates and
	// anchor files.
	PublicKeyHex() string
}

// Verifier checks a signature over message, returning nil when it holds.
type Verifier interface {
	Verify(ctx context.Context, message, signature []byte) error
}
