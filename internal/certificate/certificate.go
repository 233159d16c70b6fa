// Package certificate issues and validates member certificates.
//
// A certificate is an EdDSA-signed JWT binding a user id and display name to a
// member public key. It is validated offline against a single trust-anchor
// public key; no call to the issuer is needed. Certificates carry no expiry
// and no revocation is modeled.
package certificate

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/crypto/secp"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Claims are the fields bound by a certificate.
type Claims struct {
	// UID is the certified user id.
	UID string `json:"uid"`

	// Name is the certified display name.
	Name string `json:"name,omitempty"`

	// PublicKey is the certified member public key in hex.
	PublicKey string `json:"pub"`

	jwt.RegisteredClaims
}

// Issuer signs certificates with the trust-anchor private key.
type Issuer struct {
	key    ed25519.PrivateKey
	issuer string
	clock  clock.Clock
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerName sets the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = name
	}
}

// WithClock sets the clock used for the iat claim.
func WithClock(c clock.Clock) IssuerOption {
	return func(i *Issuer) {
		i.clock = c
	}
}

// NewIssuer creates an Issuer for the given anchor private key.
func NewIssuer(key ed25519.PrivateKey, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		key:    key,
		issuer: constants.DefaultIssuer,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueCertificate binds uid and name to publicKeyHex.
// The public key must be a valid member key.
func (i *Issuer) IssueCertificate(_ context.Context, uid, name, publicKeyHex string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	pub, err := secp.ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return "", err
	}

	claims := Claims{
		UID:       uid,
		Name:      name,
		PublicKey: pub.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   i.issuer,
			Subject:  uid,
			IssuedAt: jwt.NewNumericDate(i.clock.Now()),
			ID:       uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign certificate: %w", err)
	}
	return signed, nil
}

// Validate checks the certificate signature against the anchor and returns its claims.
// Failures wrap ErrInvalidCertificate. Time-based claims are not checked.
func Validate(cert string, anchor ed25519.PublicKey) (*Claims, error) {
	if len(anchor) != ed25519.PublicKeySize {
		return nil, payerrors.ErrTrustAnchorMissing
	}
	if cert == "" {
		return nil, fmt.Errorf("%w: empty certificate", payerrors.ErrInvalidCertificate)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(cert, &claims, func(*jwt.Token) (interface{}, error) {
		return anchor, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidCertificate, err)
	}
	if !token.Valid {
		return nil, payerrors.ErrInvalidCertificate
	}
	if claims.UID == "" {
		return nil, fmt.Errorf("%w: missing uid", payerrors.ErrInvalidCertificate)
	}
	if _, err := secp.ParsePublicKeyHex(claims.PublicKey); err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrInvalidCertificate, err)
	}

	return &claims, nil
}
