// Package ledger is the authoritative record of balances and transactions.
//
// Settlement is idempotent per token nonce: a nonce moves funds at most once.
// A best-effort Transfer made by the payer records an unverified transaction;
// a later Settle of the same token marks it verified without moving funds
// again, and any further Settle is reported as a replay.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// DefaultHistoryLimit caps History when no limit is given.
const DefaultHistoryLimit = 100

// Service is the ledger contract used by devices.
type Service interface {
	// Balance returns the authoritative balance of uid.
	Balance(ctx context.Context, uid string) (int64, error)

	// Transfer debits req.FromID and credits req.ToID, authorized by req.Token.
	Transfer(ctx context.Context, req domain.TransferRequest) (*domain.LedgerTransaction, error)

	// Settle credits the payee of token. claimant is the settling user; it
	// must match a token's recipient and receives a bearer token's funds.
	Settle(ctx context.Context, token, claimant string) (*domain.SettlementResult, error)

	// History returns uid's transactions, newest first.
	History(ctx context.Context, uid string, limit int) ([]domain.LedgerTransaction, error)
}

// TokenVerifier checks a token before it may move funds.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.VerifiedIntent, error)
}

// book is one atomic view of the ledger state.
type book interface {
	account(uid string) (balance int64, ok bool, err error)
	createAccount(uid string, balance int64) error
	adjust(uid string, delta int64) error
	byNonce(nonce string) (*domain.LedgerTransaction, error)
	insert(tx *domain.LedgerTransaction) error
	markVerified(id string) error
}

// repository runs functions against a book atomically.
type repository interface {
	atomically(ctx context.Context, fn func(book) error) error
	history(ctx context.Context, uid string, limit int) ([]domain.LedgerTransaction, error)
}

// Ledger implements Service over a repository.
type Ledger struct {
	repo     repository
	verifier TokenVerifier
	clock    clock.Clock
	logger   zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for transaction timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func newLedger(repo repository, verifier TokenVerifier, opts ...Option) *Ledger {
	l := &Ledger{
		repo:     repo,
		verifier: verifier,
		clock:    clock.RealClock{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "ledger").Logger()
	return l
}

// OpenAccount creates uid with an opening balance. Opening an existing
// account is a no-op.
func (l *Ledger) OpenAccount(ctx context.Context, uid string, opening int64) error {
	if uid == "" {
		return fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	return l.repo.atomically(ctx, func(b book) error {
		if _, ok, err := b.account(uid); err != nil || ok {
			return err
		}
		l.logger.Info().Str("uid", uid).Int64("balance", opening).Msg("account opened")
		return b.createAccount(uid, opening)
	})
}

// Balance returns the balance of uid.
func (l *Ledger) Balance(ctx context.Context, uid string) (int64, error) {
	var balance int64
	err := l.repo.atomically(ctx, func(b book) error {
		amount, ok, err := b.account(uid)
		if err != nil {
			return err
		}
		if !ok {
			return payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrUnknownParty, "no account %q", uid)
		}
		balance = amount
		return nil
	})
	return balance, err
}

// Transfer moves funds as a payer-submitted transfer. The request must match
// the token it carries. Resubmitting the same transfer returns the existing
// transaction.
func (l *Ledger) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.LedgerTransaction, error) {
	verified, err := l.verify(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	in := verified.Intent
	if in.SenderID != req.FromID || in.RecipientID != req.ToID || in.Amount != req.Amount || in.Nonce != req.Nonce {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrInvalidSignature, "transfer does not match its token")
	}
	if in.RecipientID == "" {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrUnknownParty, "transfer needs a recipient")
	}

	var out *domain.LedgerTransaction
	err = l.repo.atomically(ctx, func(b book) error {
		existing, err := b.byNonce(in.Nonce)
		if err != nil {
			return err
		}
		if existing != nil {
			if !sameMovement(existing, in.SenderID, in.RecipientID, in.Amount) {
				return payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrAlreadySettled, "nonce %s", in.Nonce)
			}
			out = existing
			return nil
		}

		tx, err := l.move(b, in, in.RecipientID, domain.TransactionTransfer, false)
		out = tx
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().Str("nonce", out.Nonce).Str("from", out.FromID).Str("to", out.ToID).
		Int64("amount", out.Amount).Msg("transfer recorded")
	return out, nil
}

// Settle credits the payee of token at most once per nonce.
func (l *Ledger) Settle(ctx context.Context, token, claimant string) (*domain.SettlementResult, error) {
	verified, err := l.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	in := verified.Intent

	payee := in.RecipientID
	switch {
	case payee != "" && claimant != "" && claimant != payee:
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrWrongClaimant, "token is addressed to %q", payee)
	case payee == "" && claimant == "":
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrUnknownParty, "bearer token needs a claimant")
	case payee == "":
		payee = claimant
	}

	var result domain.SettlementResult
	err = l.repo.atomically(ctx, func(b book) error {
		existing, err := b.byNonce(in.Nonce)
		if err != nil {
			return err
		}
		if existing != nil {
			if !sameMovement(existing, in.SenderID, payee, in.Amount) {
				return payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrAlreadySettled, "nonce %s", in.Nonce)
			}
			if existing.IsVerified {
				result = domain.SettlementResult{Transaction: *existing, Replayed: true}
				return nil
			}
			if err := b.markVerified(existing.ID); err != nil {
				return err
			}
			existing.IsVerified = true
			result = domain.SettlementResult{Transaction: *existing}
			return nil
		}

		tx, err := l.move(b, in, payee, domain.TransactionClaim, true)
		if err != nil {
			return err
		}
		result = domain.SettlementResult{Transaction: *tx}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().Str("nonce", in.Nonce).Str("payee", payee).Bool("replayed", result.Replayed).
		Msg("token settled")
	return &result, nil
}

// History returns uid's transactions, newest first.
func (l *Ledger) History(ctx context.Context, uid string, limit int) ([]domain.LedgerTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return l.repo.history(ctx, uid, limit)
}

func (l *Ledger) verify(ctx context.Context, token string) (*domain.VerifiedIntent, error) {
	if l.verifier == nil {
		return nil, payerrors.ErrTrustAnchorMissing
	}
	verified, err := l.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrSettlement, err)
	}
	return verified, nil
}

// move checks both accounts and funds, then debits, credits and records.
func (l *Ledger) move(b book, in domain.PaymentIntent, payee string, kind domain.TransactionType, verified bool) (*domain.LedgerTransaction, error) {
	if in.SenderID == payee {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrUnknownParty, "sender and payee are the same")
	}

	from, ok, err := b.account(in.SenderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrUnknownParty, "no account %q", in.SenderID)
	}
	if _, ok, err := b.account(payee); err != nil {
		return nil, err
	} else if !ok {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrUnknownParty, "no account %q", payee)
	}
	if from < in.Amount {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrInsufficientFunds,
			"balance %d, amount %d", from, in.Amount)
	}

	if err := b.adjust(in.SenderID, -in.Amount); err != nil {
		return nil, err
	}
	if err := b.adjust(payee, in.Amount); err != nil {
		return nil, err
	}

	tx := &domain.LedgerTransaction{
		ID:          uuid.NewString(),
		FromID:      in.SenderID,
		ToID:        payee,
		Amount:      in.Amount,
		Type:        kind,
		Memo:        in.Memo,
		Nonce:       in.Nonce,
		TimestampMs: clock.Millis(l.clock),
		IsVerified:  verified,
	}
	if err := b.insert(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func sameMovement(tx *domain.LedgerTransaction, from, to string, amount int64) bool {
	return tx.FromID == from && tx.ToID == to && tx.Amount == amount
}

var _ Service = (*Ledger)(nil)
