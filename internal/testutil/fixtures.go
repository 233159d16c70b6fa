package testutil

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paytoken/internal/certificate"
	"github.com/mrz1836/paytoken/internal/crypto/secp"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Authority is an in-process trust anchor and certificate issuer.
type Authority struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
	Issuer  *certificate.Issuer
}

// NewAuthority generates a fresh trust anchor.
func NewAuthority(t testing.TB) *Authority {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return &Authority{Public: pub, Private: priv, Issuer: certificate.NewIssuer(priv)}
}

// NewIdentity generates a member key and certifies it.
func (a *Authority) NewIdentity(t testing.TB, uid, name string) *domain.Identity {
	t.Helper()
	key, err := secp.Generate()
	require.NoError(t, err)
	return a.Certify(t, uid, name, key)
}

// Certify issues a certificate for an existing key.
func (a *Authority) Certify(t testing.TB, uid, name string, key *secp.PrivateKey) *domain.Identity {
	t.Helper()
	cert, err := a.Issuer.IssueCertificate(context.Background(), uid, name, key.PublicKey().Hex())
	require.NoError(t, err)
	return &domain.Identity{
		UID:         uid,
		Name:        name,
		PublicKey:   key.PublicKey().Hex(),
		PrivateKey:  key.Bytes(),
		Certificate: cert,
	}
}

// Balances is an in-memory BalanceSource.
type Balances struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewBalances returns Balances seeded with initial.
func NewBalances(initial map[string]int64) *Balances {
	values := make(map[string]int64, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &Balances{values: values}
}

// Known returns the balance for uid.
func (b *Balances) Known(_ context.Context, uid string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[uid], nil
}

// Reserve debits amount from uid when it is positive and covered.
func (b *Balances) Reserve(_ context.Context, uid string, amount int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount <= 0 || amount > b.values[uid] {
		return 0, payerrors.Kindf(payerrors.ErrAuthorization, payerrors.ErrInsufficientBalance,
			"amount %d, known balance %d", amount, b.values[uid])
	}
	b.values[uid] -= amount
	return b.values[uid], nil
}

// Set overwrites the balance for uid.
func (b *Balances) Set(uid string, amount int64) {
	b.mu.Lock()
	b.values[uid] = amount
	b.mu.Unlock()
}

// Online is a switchable connectivity check.
type Online struct {
	mu    sync.Mutex
	value bool
}

// NewOnline returns an Online reporting value.
func NewOnline(value bool) *Online {
	return &Online{value: value}
}

// Online reports the current value.
func (o *Online) Online(context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set changes the reported value.
func (o *Online) Set(value bool) {
	o.mu.Lock()
	o.value = value
	o.mu.Unlock()
}
