package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paytoken/internal/certificate"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/identity"
	"github.com/mrz1836/paytoken/internal/payment"
	"github.com/mrz1836/paytoken/internal/store"
	"github.com/mrz1836/paytoken/internal/testutil"
)

// switchableIssuer fails until enabled.
type switchableIssuer struct {
	inner   identity.CertificateIssuer
	enabled bool
	calls   int
}

func (s *switchableIssuer) IssueCertificate(ctx context.Context, uid, name, pub string) (string, error) {
	s.calls++
	if !s.enabled {
		return "", testutil.ErrMockAuthority
	}
	return s.inner.IssueCertificate(ctx, uid, name, pub)
}

func TestIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	keys := store.NewMemoryStore()
	balances := testutil.NewBalances(map[string]int64{"alice": 100})
	authorizer := payment.NewAuthorizer(balances)
	p := identity.NewProvisioner(keys, auth.Issuer)

	_, err := authorizer.Authorize(ctx, &domain.Identity{UID: "alice"}, payment.Request{RecipientID: "bob", Amount: 100})
	require.ErrorIs(t, err, payerrors.ErrIdentityRequired)

	key, err := p.GenerateIdentity()
	require.NoError(t, err)
	cert, err := p.RequestCertificate(ctx, "alice", "Alice", key.PublicKey())
	require.NoError(t, err)
	require.NoError(t, p.Persist(ctx, "alice", "Alice", key, cert))

	id, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, id.CanSign())

	got, err := authorizer.Authorize(ctx, id, payment.Request{RecipientID: "bob", Amount: 50})
	require.NoError(t, err)
	assert.Len(t, got.Token.Nonce, constants.NonceLength)

	claims, err := certificate.Validate(id.Certificate, auth.Public)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().Hex(), claims.PublicKey)
}

func TestProvision_FailureKeepsUncertifiedKey(t *testing.T) {
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	keys := store.NewMemoryStore()
	issuer := &switchableIssuer{inner: auth.Issuer}
	rec := &events.Recorder{}
	p := identity.NewProvisioner(keys, issuer, identity.WithPublisher(rec))

	_, err := p.Provision(ctx, "alice", "Alice")
	require.ErrorIs(t, err, payerrors.ErrProvisioning)
	assert.Equal(t, 1, issuer.calls)

	stored, err := keys.GetKey(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, stored.Certified())

	id, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, id.CanSign())
	assert.Equal(t, 1, issuer.calls)
	assert.Zero(t, rec.Count(events.IdentityProvisioned))

	issuer.enabled = true
	id, err = p.RetryCertificate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, id.CanSign())
	assert.Equal(t, stored.PublicKey, id.PublicKey)
	assert.Equal(t, 2, issuer.calls)
	assert.Equal(t, 1, rec.Count(events.IdentityProvisioned))

	again, err := p.RetryCertificate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id.Certificate, again.Certificate)
	assert.Equal(t, 2, issuer.calls)
}

func TestProvision_OverwritesPreviousIdentity(t *testing.T) {
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	p := identity.NewProvisioner(store.NewMemoryStore(), auth.Issuer)

	first, err := p.Provision(ctx, "alice", "Alice")
	require.NoError(t, err)
	second, err := p.Provision(ctx, "alice", "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.PublicKey, second.PublicKey)

	loaded, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second.PublicKey, loaded.PublicKey)

	_, err = certificate.Validate(first.Certificate, auth.Public)
	require.NoError(t, err)
}

func TestProvision_FailedReprovisionKeepsCertifiedIdentity(t *testing.T) {
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	keys := store.NewFileStore(t.TempDir())
	issuer := &switchableIssuer{inner: auth.Issuer, enabled: true}
	rec := &events.Recorder{}
	p := identity.NewProvisioner(keys, issuer, identity.WithPublisher(rec))

	certified, err := p.Provision(ctx, "alice", "Alice")
	require.NoError(t, err)
	require.True(t, certified.CanSign())

	issuer.enabled = false
	_, err = p.Provision(ctx, "alice", "Alice")
	require.ErrorIs(t, err, payerrors.ErrProvisioning)

	kept, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, kept.CanSign())
	assert.Equal(t, certified.PublicKey, kept.PublicKey)
	assert.Equal(t, certified.Certificate, kept.Certificate)

	authorizer := payment.NewAuthorizer(testutil.NewBalances(map[string]int64{"alice": 100}))
	_, err = authorizer.Authorize(ctx, kept, payment.Request{RecipientID: "bob", Amount: 10})
	require.NoError(t, err)

	issuer.enabled = true
	replaced, err := p.Provision(ctx, "alice", "Alice")
	require.NoError(t, err)
	assert.True(t, replaced.CanSign())
	assert.NotEqual(t, certified.PublicKey, replaced.PublicKey)

	loaded, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, replaced.PublicKey, loaded.PublicKey)
	assert.Equal(t, replaced.Certificate, loaded.Certificate)
	assert.Equal(t, 2, rec.Count(events.IdentityProvisioned))
}

func TestProvision_SealedStore(t *testing.T) {
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	inner := store.NewFileStore(t.TempDir())
	p := identity.NewProvisioner(store.NewSealedKeyStore(inner, "hunter2"), auth.Issuer)

	id, err := p.Provision(ctx, "alice", "Alice")
	require.NoError(t, err)

	raw, err := inner.GetKey(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, raw.PrivateKey)
	assert.True(t, raw.Certified())

	loaded, err := p.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id.PrivateKey, loaded.PrivateKey)

	_, err = identity.NewProvisioner(store.NewSealedKeyStore(inner, "wrong"), nil).Load(ctx, "alice")
	require.ErrorIs(t, err, payerrors.ErrSealed)
}

func TestProvision_Errors(t *testing.T) {
	ctx := context.Background()
	p := identity.NewProvisioner(store.NewMemoryStore(), nil)

	_, err := p.Provision(ctx, "alice", "Alice")
	require.ErrorIs(t, err, payerrors.ErrProvisioning)
	require.ErrorIs(t, err, payerrors.ErrAuthorityUnavailable)

	_, err = p.Load(ctx, "nobody")
	require.ErrorIs(t, err, payerrors.ErrKeyNotFound)

	_, err = p.Provision(ctx, "", "x")
	require.ErrorIs(t, err, payerrors.ErrEmptyValue)
}
