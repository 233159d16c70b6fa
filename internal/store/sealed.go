package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Argon2id parameters for deriving the sealing key from a passphrase.
const (
	sealSaltLen  = 16
	sealTime     = 1
	sealMemoryKB = 64 * 1024
	sealThreads  = 4
)

// SealedKeyStore encrypts private keys before they reach the inner store.
//
// Format of KeyRecord.SealedKey: base64url(salt_16 || nonce_24 || ciphertext+tag).
// The record's uid is authenticated as associated data, so a sealed key
// copied onto another user's record will not open.
type SealedKeyStore struct {
	inner      KeyStore
	passphrase []byte
	random     io.Reader
}

// NewSealedKeyStore wraps inner with passphrase sealing.
func NewSealedKeyStore(inner KeyStore, passphrase string) *SealedKeyStore {
	return &SealedKeyStore{inner: inner, passphrase: []byte(passphrase), random: rand.Reader}
}

// GetKey loads and opens the record for uid. The returned record has
// PrivateKey set and SealedKey cleared. Records written before sealing was
// enabled are returned as stored.
func (s *SealedKeyStore) GetKey(ctx context.Context, uid string) (*domain.KeyRecord, error) {
	rec, err := s.inner.GetKey(ctx, uid)
	if err != nil {
		return nil, err
	}
	if rec.SealedKey == "" {
		return rec, nil
	}

	plain, err := s.open(rec.SealedKey, rec.UID)
	if err != nil {
		return nil, err
	}
	rec.PrivateKey = string(plain)
	rec.SealedKey = ""
	return rec, nil
}

// PutKey seals rec.PrivateKey and stores the result. rec is not modified.
func (s *SealedKeyStore) PutKey(ctx context.Context, rec *domain.KeyRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: key record", payerrors.ErrEmptyValue)
	}
	out := *rec
	if out.PrivateKey != "" {
		sealed, err := s.seal([]byte(out.PrivateKey), out.UID)
		if err != nil {
			return err
		}
		out.SealedKey = sealed
		out.PrivateKey = ""
	}
	return s.inner.PutKey(ctx, &out)
}

func (s *SealedKeyStore) seal(plain []byte, uid string) (string, error) {
	salt := make([]byte, sealSaltLen)
	if _, err := io.ReadFull(s.random, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(s.random, nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}

	out := make([]byte, 0, sealSaltLen+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plain, []byte(uid))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *SealedKeyStore) open(sealed, uid string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < sealSaltLen+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: corrupt sealed key", payerrors.ErrSealed)
	}
	salt := raw[:sealSaltLen]
	nonce := raw[sealSaltLen : sealSaltLen+chacha20poly1305.NonceSizeX]
	ciphertext := raw[sealSaltLen+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(uid))
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or tampered record", payerrors.ErrSealed)
	}
	return plain, nil
}

func (s *SealedKeyStore) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, sealTime, sealMemoryKB, sealThreads, chacha20poly1305.KeySize)
}

var _ KeyStore = (*SealedKeyStore)(nil)
