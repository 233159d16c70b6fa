// Package secp provides member keypairs on secp256k1.
//
// Messages are hashed with SHA-256 and signed with RFC6979 deterministic ECDSA.
// Signatures are DER-encoded and public keys are compressed.
package secp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/mrz1836/paytoken/internal/crypto"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// PrivateKeySize is the length of a serialized private scalar.
const PrivateKeySize = btcec.PrivKeyBytesLen

// PrivateKey is a member's secp256k1 private key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is a member's secp256k1 public key.
type PublicKey struct {
	key *btcec.PublicKey
}

// Generate creates a new random keypair.
func Generate() (*PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKey parses a 32-byte private scalar.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", payerrors.ErrInvalidKey, PrivateKeySize, len(b))
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", payerrors.ErrInvalidKey)
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKeyHex parses a hex-encoded private scalar.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidKey, err)
	}
	return ParsePrivateKey(b)
}

// Bytes returns the 32-byte private scalar.
func (k *PrivateKey) Bytes() []byte {
	return k.key.Serialize()
}

// Hex returns the hex-encoded private scalar.
func (k *PrivateKey) Hex() string {
	return hex.EncodeToString(k.Bytes())
}

// PublicKey returns the matching public key.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// ParsePublicKeyHex parses a hex-encoded compressed or uncompressed public key.
func ParsePublicKeyHex(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidKey, err)
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidKey, err)
	}
	return &PublicKey{key: key}, nil
}

// Hex returns the hex-encoded compressed public key.
func (p *PublicKey) Hex() string {
	return hex.EncodeToString(p.key.SerializeCompressed())
}

// Verify checks a DER signature over SHA-256(message).
func (p *PublicKey) Verify(_ context.Context, message, signature []byte) error {
	if len(signature) == 0 {
		return fmt.Errorf("%w: empty signature", payerrors.ErrInvalidSignature)
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return fmt.Errorf("%w: %w", payerrors.ErrInvalidSignature, err)
	}
	hash := sha256.Sum256(message)
	if !sig.Verify(hash[:], p.key) {
		return payerrors.ErrInvalidSignature
	}
	return nil
}

// Signer signs with a member private key.
type Signer struct {
	key *PrivateKey
	pub *PublicKey
}

// NewSigner creates a Signer for the given key.
func NewSigner(key *PrivateKey) *Signer {
	return &Signer{key: key, pub: key.PublicKey()}
}

// Sign hashes the message with SHA-256 and returns a DER-encoded RFC6979 signature.
func (s *Signer) Sign(_ context.Context, message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	return ecdsa.Sign(s.key.key, hash[:]).Serialize(), nil
}

// Verify checks the signature against the signer's own public key.
func (s *Signer) Verify(ctx context.Context, message, signature []byte) error {
	return s.pub.Verify(ctx, message, signature)
}

// PublicKeyHex returns the compressed public key in hex.
func (s *Signer) PublicKeyHex() string {
	return s.pub.Hex()
}

var (
	_ crypto.Signer   = (*Signer)(nil)
	_ crypto.Verifier = (*PublicKey)(nil)
)
