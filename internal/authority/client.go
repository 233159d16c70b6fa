// Package authority is the HTTP client for the Trust Authority.
package authority

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/mrz1836/paytoken/internal/api"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/crypto/anchor"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Client requests certificates and the anchor key from a remote authority.
type Client struct {
	api *api.Client
}

// NewClient creates a Client for the authority at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &Client{api: api.NewClient(baseURL, timeout, payerrors.ErrAuthorityUnavailable)}
}

// IssueCertificate asks the authority to bind uid and name to publicKeyHex.
// Every failure matches ErrProvisioning; unreachable authorities also match
// ErrAuthorityUnavailable.
func (c *Client) IssueCertificate(ctx context.Context, uid, name, publicKeyHex string) (string, error) {
	var resp api.CertificateResponse
	err := c.api.Post(ctx, "/v1/certificates", api.CertificateRequest{UID: uid, Name: name, PublicKey: publicKeyHex}, &resp)
	if err != nil {
		if errors.Is(err, payerrors.ErrProvisioning) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", payerrors.ErrProvisioning, err)
	}
	if resp.Certificate == "" {
		return "", fmt.Errorf("%w: authority returned an empty certificate", payerrors.ErrProvisioning)
	}
	return resp.Certificate, nil
}

// FetchAnchor downloads the trust-anchor public key.
func (c *Client) FetchAnchor(ctx context.Context) (ed25519.PublicKey, error) {
	var resp api.AnchorResponse
	if err := c.api.Get(ctx, "/v1/anchor", &resp); err != nil {
		return nil, err
	}
	return anchor.ParsePublicKeyHex(resp.PublicKey)
}
