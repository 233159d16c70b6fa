package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// EncodeToken returns the transport form of a token: base64(JSON).
func EncodeToken(tok *domain.SignedPaymentToken) (string, error) {
	data, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// decoders are tried in order; tokens copied out of URIs often arrive
// URL-safe or unpadded.
//
//nolint:gochecknoglobals // Fixed decoder list
var decoders = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeToken parses the transport form of a token. Every failure wraps
// ErrMalformedToken. No cryptographic check happens here.
func DecodeToken(s string) (*domain.SignedPaymentToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty token", payerrors.ErrMalformedToken)
	}

	var raw []byte
	for _, enc := range decoders {
		if decoded, err := enc.DecodeString(s); err == nil {
			raw = decoded
			break
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not base64", payerrors.ErrMalformedToken)
	}

	var tok domain.SignedPaymentToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrMalformedToken, err)
	}

	switch {
	case tok.SenderID == "":
		return nil, fmt.Errorf("%w: missing senderId", payerrors.ErrMalformedToken)
	case tok.Nonce == "":
		return nil, fmt.Errorf("%w: missing nonce", payerrors.ErrMalformedToken)
	case tok.Amount <= 0:
		return nil, fmt.Errorf("%w: amount must be positive", payerrors.ErrMalformedToken)
	case tok.Signature == "":
		return nil, fmt.Errorf("%w: missing signature", payerrors.ErrMalformedToken)
	case tok.Certificate == "":
		return nil, fmt.Errorf("%w: missing certificate", payerrors.ErrMalformedToken)
	}

	return &tok, nil
}

// TokenURI embeds an encoded token as the token query parameter of base.
func TokenURI(base, encoded string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	q := u.Query()
	q.Set(constants.TokenQueryParam, encoded)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractToken returns the token carried by input. Input is either an encoded
// token or a URI with a token query parameter.
func ExtractToken(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "?") {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	if tok := u.Query().Get(constants.TokenQueryParam); tok != "" {
		return tok
	}
	return input
}
