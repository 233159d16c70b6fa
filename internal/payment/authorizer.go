package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/crypto/secp"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
)

// BalanceSource is the local, non-authoritative view of a user's balance.
type BalanceSource interface {
	// Reserve checks that amount is positive and covered by the known
	// balance and debits it in the same atomic step, returning the balance
	// left. A rejected amount leaves the balance unchanged and matches
	// ErrInsufficientBalance.
	Reserve(ctx context.Context, uid string, amount int64) (int64, error)
}

// Syncer submits a signed payment to the ledger as a direct transfer.
type Syncer interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.LedgerTransaction, error)
}

// Connectivity reports whether the ledger is reachable right now.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Request describes a payment to authorize.
type Request struct {
	// RecipientID may be empty for a bearer token anyone can claim.
	RecipientID string

	// Amount must be positive and within the known balance.
	Amount int64

	// Memo is optional.
	Memo string

	// Bounds, when set, restricts Amount to a payment request's clamped range.
	Bounds *domain.AmountBounds
}

// Authorization is a signed token and its transport encoding.
type Authorization struct {
	Token   *domain.SignedPaymentToken
	Encoded string
}

// Authorizer builds, signs and packages payment intents.
type Authorizer struct {
	balances    BalanceSource
	syncer      Syncer
	online      Connectivity
	publisher   events.Publisher
	clock       clock.Clock
	random      io.Reader
	syncTimeout time.Duration
	logger      zerolog.Logger

	wg sync.WaitGroup
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithSyncer enables best-effort ledger sync. online gates each attempt; nil means always try.
func WithSyncer(s Syncer, online Connectivity) AuthorizerOption {
	return func(a *Authorizer) {
		a.syncer = s
		a.online = online
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) AuthorizerOption {
	return func(a *Authorizer) {
		a.publisher = p
	}
}

// WithClock sets the clock used for intent timestamps.
func WithClock(c clock.Clock) AuthorizerOption {
	return func(a *Authorizer) {
		a.clock = c
	}
}

// WithRandom replaces the nonce randomness source.
func WithRandom(r io.Reader) AuthorizerOption {
	return func(a *Authorizer) {
		a.random = r
	}
}

// WithSyncTimeout bounds each best-effort sync.
func WithSyncTimeout(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		a.syncTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		a.logger = l
	}
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(balances BalanceSource, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		balances:    balances,
		publisher:   events.Nop{},
		clock:       clock.RealClock{},
		random:      rand.Reader,
		syncTimeout: constants.DefaultSyncTimeout,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "authorizer").Logger()
	return a
}

// Authorize signs a payment from id. Precondition failures leave no side
// effects. The amount is checked against the known balance and debited in
// one step once the token is built, so concurrent authorizations cannot
// overspend. The ledger sync that follows is best-effort and never fails
// the call.
func (a *Authorizer) Authorize(ctx context.Context, id *domain.Identity, req Request) (*Authorization, error) {
	if !id.CanSign() {
		return nil, payerrors.Kind(payerrors.ErrAuthorization, payerrors.ErrIdentityRequired)
	}

	if req.Bounds != nil && !req.Bounds.Contains(req.Amount) {
		return nil, payerrors.Kindf(payerrors.ErrAuthorization, payerrors.ErrOutOfRange,
			"amount %d outside [%d, %d]", req.Amount, req.Bounds.Min, req.Bounds.Max)
	}

	if req.Amount <= 0 {
		return nil, payerrors.Kindf(payerrors.ErrAuthorization, payerrors.ErrInsufficientBalance,
			"amount %d must be positive", req.Amount)
	}

	key, err := secp.ParsePrivateKey(id.PrivateKey)
	if err != nil {
		return nil, payerrors.Kindf(payerrors.ErrAuthorization, payerrors.ErrIdentityRequired, "unusable private key: %v", err)
	}

	nonce, err := NewNonce(a.random)
	if err != nil {
		return nil, err
	}

	intent := domain.PaymentIntent{
		SenderID:    id.UID,
		SenderName:  id.Name,
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		TimestampMs: clock.Millis(a.clock),
		Nonce:       nonce,
		Memo:        req.Memo,
	}

	sig, err := secp.NewSigner(key).Sign(ctx, Canonicalize(intent))
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment: %w", err)
	}

	tok := &domain.SignedPaymentToken{
		PaymentIntent: intent,
		Signature:     hex.EncodeToString(sig),
		Certificate:   id.Certificate,
	}
	encoded, err := EncodeToken(tok)
	if err != nil {
		return nil, err
	}

	remaining, err := a.balances.Reserve(ctx, id.UID, req.Amount)
	if err != nil {
		if errors.Is(err, payerrors.ErrInsufficientBalance) {
			return nil, err
		}
		return nil, payerrors.Wrap(err, "failed to reserve known balance")
	}

	logger := a.logger.With().Str("uid", id.UID).Str("nonce", nonce).Logger()
	logger.Info().Int64("amount", req.Amount).Int64("balance", remaining).Str("recipient", req.RecipientID).Msg("payment authorized")

	a.publish(ctx, events.Event{Type: events.PaymentAuthorized, UID: id.UID, Nonce: nonce, Amount: req.Amount})

	if a.syncer != nil && req.RecipientID != "" {
		a.syncInBackground(ctx, tok, encoded)
	}

	return &Authorization{Token: tok, Encoded: encoded}, nil
}

// Wait blocks until in-flight best-effort syncs finish.
func (a *Authorizer) Wait() {
	a.wg.Wait()
}

func (a *Authorizer) syncInBackground(ctx context.Context, tok *domain.SignedPaymentToken, encoded string) {
	// The sync outlives the caller's context; only its own timeout ends it.
	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.syncTimeout)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()

		logger := a.logger.With().Str("uid", tok.SenderID).Str("nonce", tok.Nonce).Logger()

		if a.online != nil && !a.online.Online(syncCtx) {
			logger.Debug().Msg("offline, skipping ledger sync")
			return
		}

		_, err := a.syncer.Transfer(syncCtx, domain.TransferRequest{
			FromID:      tok.SenderID,
			ToID:        tok.RecipientID,
			Amount:      tok.Amount,
			Memo:        tok.Memo,
			Nonce:       tok.Nonce,
			TimestampMs: tok.TimestampMs,
			Token:       encoded,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("best-effort ledger sync failed")
			a.publish(syncCtx, events.Event{Type: events.PaymentSyncFailed, UID: tok.SenderID, Nonce: tok.Nonce, Error: err.Error()})
			return
		}

		logger.Debug().Msg("payment synced to ledger")
		a.publish(syncCtx, events.Event{Type: events.PaymentSynced, UID: tok.SenderID, Nonce: tok.Nonce, Amount: tok.Amount})
	}()
}

func (a *Authorizer) publish(ctx context.Context, e events.Event) {
	e.AtMs = clock.Millis(a.clock)
	if err := a.publisher.Publish(ctx, e); err != nil {
		a.logger.Debug().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish event")
	}
}
