// Package identity provisions and loads member identities.
//
// Provisioning generates a secp256k1 keypair, persists it, and asks the Trust
// Authority for a certificate. A failed certificate request is never retried
// automatically; the stored key stays uncertified until RetryCertificate is
// called explicitly. Re-provisioning never discards a certified identity
// before its replacement is certified.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/crypto/secp"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/store"
)

// CertificateIssuer is the Trust Authority contract.
type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, uid, name, publicKeyHex string) (string, error)
}

// Provisioner creates and loads identities.
type Provisioner struct {
	keys      store.KeyStore
	issuer    CertificateIssuer
	publisher events.Publisher
	clock     clock.Clock
	logger    zerolog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(pr *Provisioner) {
		pr.publisher = p
	}
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(pr *Provisioner) {
		pr.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(pr *Provisioner) {
		pr.logger = l
	}
}

// NewProvisioner creates a Provisioner. issuer may be nil when only Load is used.
func NewProvisioner(keys store.KeyStore, issuer CertificateIssuer, opts ...Option) *Provisioner {
	p := &Provisioner{
		keys:      keys,
		issuer:    issuer,
		publisher: events.Nop{},
		clock:     clock.RealClock{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "identity").Logger()
	return p
}

// GenerateIdentity creates a new keypair. It has no side effects.
func (p *Provisioner) GenerateIdentity() (*secp.PrivateKey, error) {
	return secp.Generate()
}

// RequestCertificate asks the authority to certify pub for uid. Failures
// match ErrProvisioning.
func (p *Provisioner) RequestCertificate(ctx context.Context, uid, name string, pub *secp.PublicKey) (string, error) {
	if p.issuer == nil {
		return "", fmt.Errorf("%w: %w", payerrors.ErrProvisioning, payerrors.ErrAuthorityUnavailable)
	}
	cert, err := p.issuer.IssueCertificate(ctx, uid, name, pub.Hex())
	if err != nil {
		if errors.Is(err, payerrors.ErrProvisioning) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", payerrors.ErrProvisioning, err)
	}
	return cert, nil
}

// Persist stores key and cert for uid, overwriting any previous identity.
// cert may be empty for a key awaiting certification.
func (p *Provisioner) Persist(ctx context.Context, uid, name string, key *secp.PrivateKey, cert string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	now := clock.Millis(p.clock)
	rec := &domain.KeyRecord{
		UID:         uid,
		Name:        name,
		PublicKey:   key.PublicKey().Hex(),
		PrivateKey:  key.Hex(),
		Certificate: cert,
		CreatedAtMs: now,
	}
	if cert != "" {
		rec.CertifiedAtMs = now
	}
	if err := p.keys.PutKey(ctx, rec); err != nil {
		return payerrors.Wrap(err, "failed to persist key")
	}
	return nil
}

// Provision generates a key for uid and requests its certificate.
//
// When uid has no certified identity yet, the key is persisted first and
// kept uncertified if the certificate request fails, ready for
// RetryCertificate. A certified identity is only replaced once the new key
// is certified; on failure it stays in place and can keep signing.
func (p *Provisioner) Provision(ctx context.Context, uid, name string) (*domain.Identity, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	existing, err := p.keys.GetKey(ctx, uid)
	switch {
	case errors.Is(err, payerrors.ErrKeyNotFound):
		existing = nil
	case err != nil:
		return nil, err
	}

	key, err := p.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	logger := p.logger.With().Str("uid", uid).Str("public_key", key.PublicKey().Hex()).Logger()

	if existing == nil || !existing.Certified() {
		if err := p.Persist(ctx, uid, name, key, ""); err != nil {
			return nil, err
		}
		logger.Info().Msg("keypair generated")
		return p.certify(ctx, uid, name, key)
	}

	logger.Info().Msg("keypair generated, replacing certified identity")
	cert, err := p.RequestCertificate(ctx, uid, name, key.PublicKey())
	if err != nil {
		logger.Warn().Err(err).Msg("certificate request failed, previous identity kept")
		return nil, err
	}
	if err := p.Persist(ctx, uid, name, key, cert); err != nil {
		return nil, err
	}
	logger.Info().Msg("identity certified")
	p.published(ctx, uid)

	rec, err := p.keys.GetKey(ctx, uid)
	if err != nil {
		return nil, err
	}
	return toIdentity(rec, key), nil
}

// RetryCertificate requests a certificate for the stored key of uid. An
// already certified identity is returned unchanged.
func (p *Provisioner) RetryCertificate(ctx context.Context, uid string) (*domain.Identity, error) {
	rec, err := p.keys.GetKey(ctx, uid)
	if err != nil {
		return nil, err
	}
	key, err := secp.ParsePrivateKeyHex(rec.PrivateKey)
	if err != nil {
		return nil, err
	}
	if rec.Certified() {
		return toIdentity(rec, key), nil
	}
	return p.certify(ctx, uid, rec.Name, key)
}

// Load returns the stored identity for uid. The identity may lack a
// certificate, in which case it cannot sign.
func (p *Provisioner) Load(ctx context.Context, uid string) (*domain.Identity, error) {
	rec, err := p.keys.GetKey(ctx, uid)
	if err != nil {
		return nil, err
	}
	key, err := secp.ParsePrivateKeyHex(rec.PrivateKey)
	if err != nil {
		return nil, err
	}
	return toIdentity(rec, key), nil
}

func (p *Provisioner) certify(ctx context.Context, uid, name string, key *secp.PrivateKey) (*domain.Identity, error) {
	cert, err := p.RequestCertificate(ctx, uid, name, key.PublicKey())
	if err != nil {
		p.logger.Warn().Err(err).Str("uid", uid).Msg("certificate request failed")
		return nil, err
	}

	var out *domain.Identity
	err = p.updateCertificate(ctx, uid, key, cert, func(rec *domain.KeyRecord) {
		out = toIdentity(rec, key)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("uid", uid).Msg("identity certified")
	p.published(ctx, uid)
	return out, nil
}

func (p *Provisioner) published(ctx context.Context, uid string) {
	if err := p.publisher.Publish(ctx, events.Event{Type: events.IdentityProvisioned, UID: uid, AtMs: clock.Millis(p.clock)}); err != nil {
		p.logger.Debug().Err(err).Msg("failed to publish event")
	}
}

// updateCertificate stores cert on uid's record, provided the record still
// holds key. A concurrent re-provision replaced the key otherwise.
func (p *Provisioner) updateCertificate(ctx context.Context, uid string, key *secp.PrivateKey, cert string, done func(*domain.KeyRecord)) error {
	rec, err := p.keys.GetKey(ctx, uid)
	if err != nil {
		return err
	}
	if rec.PublicKey != key.PublicKey().Hex() {
		return fmt.Errorf("%w: key for %s changed during provisioning", payerrors.ErrProvisioning, uid)
	}
	rec.Certificate = cert
	rec.CertifiedAtMs = clock.Millis(p.clock)
	if err := p.keys.PutKey(ctx, rec); err != nil {
		return payerrors.Wrap(err, "failed to persist certificate")
	}
	done(rec)
	return nil
}

func toIdentity(rec *domain.KeyRecord, key *secp.PrivateKey) *domain.Identity {
	return &domain.Identity{
		UID:         rec.UID,
		Name:        rec.Name,
		PublicKey:   rec.PublicKey,
		PrivateKey:  key.Bytes(),
		Certificate: rec.Certificate,
	}
}
