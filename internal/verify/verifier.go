// Package verify checks payment tokens offline against a fixed trust anchor.
package verify

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mrz1836/paytoken/internal/certificate"
	"github.com/mrz1836/paytoken/internal/crypto/secp"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/payment"
)

// Verifier validates tokens with no network access.
type Verifier struct {
	anchor ed25519.PublicKey
}

// New creates a Verifier trusting only anchor.
func New(anchor ed25519.PublicKey) *Verifier {
	return &Verifier{anchor: anchor}
}

// Verify decodes tokenStr (a raw token or a URI carrying one), validates the
// embedded certificate against the anchor, and checks the signature over the
// canonical intent using the certified key. A token whose sender id differs
// from the certificate's uid never verifies.
//
// Errors match ErrVerification and one of ErrMalformedToken,
// ErrInvalidCertificate or ErrInvalidSignature.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*domain.VerifiedIntent, error) {
	if len(v.anchor) != ed25519.PublicKeySize {
		return nil, payerrors.ErrTrustAnchorMissing
	}

	raw := payment.ExtractToken(tokenStr)
	tok, err := payment.DecodeToken(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrVerification, err)
	}

	claims, err := certificate.Validate(tok.Certificate, v.anchor)
	if err != nil {
		if errors.Is(err, payerrors.ErrTrustAnchorMissing) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", payerrors.ErrVerification, err)
	}

	pub, err := secp.ParsePublicKeyHex(claims.PublicKey)
	if err != nil {
		return nil, payerrors.Kindf(payerrors.ErrVerification, payerrors.ErrInvalidCertificate, "%v", err)
	}

	sig, err := hex.DecodeString(tok.Signature)
	if err != nil {
		return nil, payerrors.Kindf(payerrors.ErrVerification, payerrors.ErrInvalidSignature, "signature is not hex")
	}

	if tok.SenderID != claims.UID {
		return nil, payerrors.Kindf(payerrors.ErrVerification, payerrors.ErrInvalidSignature,
			"sender %q is not the certified uid", tok.SenderID)
	}

	bound := tok.PaymentIntent
	bound.SenderID = claims.UID
	if err := pub.Verify(ctx, payment.Canonicalize(bound), sig); err != nil {
		return nil, payerrors.Kind(payerrors.ErrVerification, payerrors.ErrInvalidSignature)
	}

	holder := claims.Name
	if holder == "" {
		holder = tok.SenderName
	}

	return &domain.VerifiedIntent{
		Intent:     tok.PaymentIntent,
		HolderName: holder,
		PublicKey:  claims.PublicKey,
		Token:      raw,
	}, nil
}
