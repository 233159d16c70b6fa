// Package anchor manages the trust-anchor Ed25519 keypair.
//
// The reference Trust Authority signs certificates with the private half; every
// verifier embeds only the public half. The public key travels as hex.
package anchor

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mrz1836/paytoken/internal/crypto"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// KeyFileName is the file the anchor private key is kept in.
const KeyFileName = "anchor.key"

// ErrKeyNotLoaded is returned when the key is used before Load.
var ErrKeyNotLoaded = errors.New("anchor key not loaded")

// KeyManager loads the anchor key from disk, generating it on first use.
type KeyManager struct {
	keyPath string
	mu      sync.RWMutex
	privKey ed25519.PrivateKey
}

// NewKeyManager creates a KeyManager that keeps its key in keyDir.
func NewKeyManager(keyDir string) *KeyManager {
	return &KeyManager{
		keyPath: filepath.Join(keyDir, KeyFileName),
	}
}

// Load reads the anchor key, generating and saving one if none exists.
func (km *KeyManager) Load(_ context.Context) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.privKey != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(km.keyPath), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	data, err := os.ReadFile(km.keyPath)
	if os.IsNotExist(err) {
		_, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return fmt.Errorf("generating anchor key: %w", genErr)
		}
		if writeErr := os.WriteFile(km.keyPath, []byte(hex.EncodeToString(priv)), 0o600); writeErr != nil {
			return fmt.Errorf("saving anchor key: %w", writeErr)
		}
		km.privKey = priv
		return nil
	} else if err != nil {
		return fmt.Errorf("reading anchor key: %w", err)
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("%w: decoding anchor key hex: %w", payerrors.ErrInvalidKey, err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", payerrors.ErrInvalidKey, ed25519.PrivateKeySize, len(decoded))
	}

	km.privKey = ed25519.PrivateKey(decoded)
	return nil
}

// Exists reports whether the key file is present.
func (km *KeyManager) Exists() bool {
	_, err := os.Stat(km.keyPath)
	return err == nil
}

// PrivateKey returns the loaded anchor private key.
func (km *KeyManager) PrivateKey() (ed25519.PrivateKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if km.privKey == nil {
		return nil, ErrKeyNotLoaded
	}
	return km.privKey, nil
}

// NewSigner creates a Signer for the loaded key.
func (km *KeyManager) NewSigner() (*Signer, error) {
	priv, err := km.PrivateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{privKey: priv}, nil
}

// Signer signs with the anchor key.
type Signer struct {
	privKey ed25519.PrivateKey
}

// Sign signs the message with Ed25519.
func (s *Signer) Sign(_ context.Context, message []byte) ([]byte, error) {
	return ed25519.Sign(s.privKey, message), nil
}

// Verify checks an Ed25519 signature against the anchor public key.
func (s *Signer) Verify(_ context.Context, message, signature []byte) error {
	pub := s.privKey.Public().(ed25519.PublicKey)
	if !ed25519.Verify(pub, message, signature) {
		return payerrors.ErrInvalidSignature
	}
	return nil
}

// PublicKeyHex returns the anchor public key in hex.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.privKey.Public().(ed25519.PublicKey))
}

var _ crypto.Signer = (*Signer)(nil)

// ParsePublicKeyHex parses a hex-encoded anchor public key.
func ParsePublicKeyHex(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, payerrors.ErrTrustAnchorMissing
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidKey, err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", payerrors.ErrInvalidKey, ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// ReadPublicKeyFile reads a hex anchor public key from path.
func ReadPublicKeyFile(path string) (ed25519.PublicKey, error) {
	//nolint:gosec // G304: path comes from configuration
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s does not exist", payerrors.ErrTrustAnchorMissing, path)
	} else if err != nil {
		return nil, fmt.Errorf("reading anchor file: %w", err)
	}
	return ParsePublicKeyHex(string(data))
}

// WritePublicKeyFile writes a hex anchor public key to path.
func WritePublicKeyFile(path string, pub ed25519.PublicKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating anchor directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(pub)+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing anchor file: %w", err)
	}
	return nil
}
