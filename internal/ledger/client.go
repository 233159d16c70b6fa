package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/mrz1836/paytoken/internal/api"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Client talks to a remote ledger over HTTP. Transport failures match
// ErrLedgerUnavailable; ledger verdicts match ErrSettlement.
type Client struct {
	api *api.Client
}

// NewClient creates a Client for the ledger at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &Client{api: api.NewClient(baseURL, timeout, payerrors.ErrLedgerUnavailable)}
}

// Balance returns the authoritative balance of uid.
func (c *Client) Balance(ctx context.Context, uid string) (int64, error) {
	var resp api.BalanceResponse
	if err := c.api.Get(ctx, "/v1/accounts/"+url.PathEscape(uid)+"/balance", &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Transfer submits a payer transfer.
func (c *Client) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.LedgerTransaction, error) {
	var tx domain.LedgerTransaction
	if err := c.api.Post(ctx, "/v1/transactions", req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Settle settles token for claimant. Every rejection by the ledger matches
// ErrSettlement, including verification failures.
func (c *Client) Settle(ctx context.Context, token, claimant string) (*domain.SettlementResult, error) {
	var result domain.SettlementResult
	if err := c.api.Post(ctx, "/v1/settlements", api.SettleRequest{Token: token, Claimant: claimant}, &result); err != nil {
		if errors.Is(err, payerrors.ErrVerification) {
			return nil, fmt.Errorf("%w: %w", payerrors.ErrSettlement, err)
		}
		return nil, err
	}
	return &result, nil
}

// History returns uid's transactions, newest first.
func (c *Client) History(ctx context.Context, uid string, limit int) ([]domain.LedgerTransaction, error) {
	path := "/v1/accounts/" + url.PathEscape(uid) + "/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.HistoryResponse
	if err := c.api.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// Ping checks that the ledger answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Get(ctx, "/healthz", nil)
}

// Online reports whether Ping succeeds.
func (c *Client) Online(ctx context.Context) bool {
	return c.Ping(ctx) == nil
}

var _ Service = (*Client)(nil)
