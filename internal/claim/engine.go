// Package claim settles received payment tokens against the ledger, either
// directly when online or later through a durable per-user queue.
//
// State machine per queued claim:
//
//	pending -> success
//	pending -> failed
//
// A ledger verdict is terminal. Transport failures leave the entry pending
// for the next sweep.
package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/store"
)

// Settler settles a token on the ledger.
type Settler interface {
	Settle(ctx context.Context, token, claimant string) (*domain.SettlementResult, error)
}

// BalanceRefresher reloads the local balance view from the ledger.
type BalanceRefresher interface {
	Refresh(ctx context.Context, uid string) (int64, error)
}

// Connectivity reports whether the ledger is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// TokenVerifier verifies a token offline.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.VerifiedIntent, error)
}

// Outcome is the result of a claim: either settled now or queued.
type Outcome struct {
	Settlement *domain.SettlementResult `json:"settlement,omitempty"`
	Queued     *domain.PendingClaim     `json:"queued,omitempty"`
}

// SweepReport summarizes one reconciliation sweep.
type SweepReport struct {
	// Attempted counts pending entries sent to the ledger.
	Attempted int `json:"attempted"`
	Settled   int `json:"settled"`
	Failed    int `json:"failed"`

	// Deferred counts entries left pending because the ledger was unreachable.
	Deferred int `json:"deferred"`

	// Offline is set when the sweep did not run for lack of connectivity.
	Offline bool `json:"offline"`

	// Shared is set when the caller joined a sweep already in progress.
	Shared bool `json:"shared"`
}

// Engine runs claims and sweeps.
type Engine struct {
	queue         store.ClaimQueueStore
	settler       Settler
	balances      BalanceRefresher
	verifier      TokenVerifier
	online        Connectivity
	publisher     events.Publisher
	clock         clock.Clock
	settleTimeout time.Duration
	logger        zerolog.Logger

	sweeps singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithBalances sets the balance view refreshed after settlements.
func WithBalances(b BalanceRefresher) Option {
	return func(e *Engine) {
		e.balances = b
	}
}

// WithVerifier enables ClaimToken.
func WithVerifier(v TokenVerifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithConnectivity gates sweeps on a connectivity check.
func WithConnectivity(c Connectivity) Option {
	return func(e *Engine) {
		e.online = c
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSettleTimeout bounds each ledger settle call.
func WithSettleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.settleTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an Engine.
func NewEngine(queue store.ClaimQueueStore, settler Settler, opts ...Option) *Engine {
	e := &Engine{
		queue:         queue,
		settler:       settler,
		publisher:     events.Nop{},
		clock:         clock.RealClock{},
		settleTimeout: constants.DefaultSettleTimeout,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "claim").Logger()
	return e
}

// ClaimToken verifies tokenStr offline and claims it for uid.
func (e *Engine) ClaimToken(ctx context.Context, uid, tokenStr string, online bool) (*Outcome, error) {
	if e.verifier == nil {
		return nil, payerrors.ErrTrustAnchorMissing
	}
	verified, err := e.verifier.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	return e.Claim(ctx, uid, verified, online)
}

// Claim settles verified for uid when online, surfacing ledger rejections.
// Offline, or when the ledger turns out to be unreachable mid-claim, it
// appends a pending entry to uid's queue instead.
func (e *Engine) Claim(ctx context.Context, uid string, verified *domain.VerifiedIntent, online bool) (*Outcome, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid", payerrors.ErrEmptyValue)
	}
	if verified.Intent.RecipientID != "" && verified.Intent.RecipientID != uid {
		return nil, payerrors.Kindf(payerrors.ErrSettlement, payerrors.ErrWrongClaimant,
			"token is addressed to %q", verified.Intent.RecipientID)
	}

	if online {
		return e.claimOnline(ctx, uid, verified)
	}
	return e.enqueue(ctx, uid, verified)
}

func (e *Engine) claimOnline(ctx context.Context, uid string, verified *domain.VerifiedIntent) (*Outcome, error) {
	logger := e.logger.With().Str("uid", uid).Str("nonce", verified.Intent.Nonce).Logger()

	settleCtx, cancel := context.WithTimeout(ctx, e.settleTimeout)
	defer cancel()

	res, err := e.settler.Settle(settleCtx, verified.Token, uid)
	if errors.Is(err, payerrors.ErrLedgerUnavailable) {
		logger.Warn().Err(err).Msg("ledger unreachable, queueing claim")
		return e.enqueue(ctx, uid, verified)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("settlement failed")
		return nil, err
	}

	logger.Info().Str("transaction_id", res.Transaction.ID).Bool("replayed", res.Replayed).Msg("claim settled")
	e.publish(ctx, events.Event{Type: events.ClaimSettled, UID: uid, Nonce: verified.Intent.Nonce, Amount: verified.Intent.Amount})
	e.refresh(ctx, uid)
	return &Outcome{Settlement: res}, nil
}

func (e *Engine) enqueue(ctx context.Context, uid string, verified *domain.VerifiedIntent) (*Outcome, error) {
	entry := domain.PendingClaim{
		ID:           uuid.NewString(),
		TokenStr:     verified.Token,
		Nonce:        verified.Intent.Nonce,
		Amount:       verified.Intent.Amount,
		SenderID:     verified.Intent.SenderID,
		EnqueuedAtMs: clock.Millis(e.clock),
		Status:       domain.ClaimPending,
	}

	err := e.queue.UpdateClaims(ctx, uid, func(claims []domain.PendingClaim) ([]domain.PendingClaim, error) {
		for _, c := range claims {
			if c.Nonce == entry.Nonce {
				return nil, fmt.Errorf("%w: nonce %s", payerrors.ErrClaimExists, entry.Nonce)
			}
		}
		return append(claims, entry), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Str("uid", uid).Str("claim_id", entry.ID).Str("nonce", entry.Nonce).Msg("claim queued")
	e.publish(ctx, events.Event{Type: events.ClaimQueued, UID: uid, ClaimID: entry.ID, Nonce: entry.Nonce, Amount: entry.Amount})
	return &Outcome{Queued: &entry}, nil
}

// Pending returns uid's queue, including terminal entries.
func (e *Engine) Pending(ctx context.Context, uid string) ([]domain.PendingClaim, error) {
	return e.queue.ListClaims(ctx, uid)
}

// Sweep attempts every pending entry of uid's queue once. Concurrent calls
// for the same uid join the sweep in progress instead of starting another.
func (e *Engine) Sweep(ctx context.Context, uid string) (SweepReport, error) {
	v, err, shared := e.sweeps.Do(uid, func() (any, error) {
		return e.sweep(ctx, uid)
	})
	report, _ := v.(SweepReport)
	report.Shared = shared
	return report, err
}

func (e *Engine) sweep(ctx context.Context, uid string) (SweepReport, error) {
	var report SweepReport
	logger := e.logger.With().Str("uid", uid).Logger()

	if e.online != nil && !e.online.Online(ctx) {
		report.Offline = true
		logger.Debug().Msg("offline, sweep skipped")
		return report, nil
	}

	// Settle from a snapshot so the queue lock is not held across ledger calls.
	snapshot, err := e.queue.ListClaims(ctx, uid)
	if err != nil {
		return report, payerrors.Wrap(err, "failed to read claim queue")
	}

	for _, entry := range snapshot {
		if entry.Status != domain.ClaimPending {
			continue
		}
		if ctx.Err() != nil {
			report.Deferred++
			continue
		}

		report.Attempted++
		entryLogger := logger.With().Str("claim_id", entry.ID).Str("nonce", entry.Nonce).Logger()

		settleCtx, cancel := context.WithTimeout(ctx, e.settleTimeout)
		res, settleErr := e.settler.Settle(settleCtx, entry.TokenStr, uid)
		cancel()

		switch {
		case settleErr == nil:
			if err := e.finish(ctx, uid, entry.ID, domain.ClaimSuccess, res.Transaction.ID, ""); err != nil {
				return report, err
			}
			report.Settled++
			entryLogger.Info().Str("transaction_id", res.Transaction.ID).Msg("queued claim settled")
			e.publish(ctx, events.Event{Type: events.ClaimSettled, UID: uid, ClaimID: entry.ID, Nonce: entry.Nonce, Amount: entry.Amount})

		case isVerdict(settleErr):
			if err := e.finish(ctx, uid, entry.ID, domain.ClaimFailed, "", settleErr.Error()); err != nil {
				return report, err
			}
			report.Failed++
			entryLogger.Warn().Err(settleErr).Msg("queued claim rejected")
			e.publish(ctx, events.Event{Type: events.ClaimFailed, UID: uid, ClaimID: entry.ID, Nonce: entry.Nonce, Error: settleErr.Error()})

		default:
			// Ledger unreachable: the remaining entries would fail the same way.
			report.Attempted--
			report.Deferred += countPending(snapshot, entry.ID)
			entryLogger.Warn().Err(settleErr).Msg("ledger unreachable, sweep stopped")
			e.refreshIf(ctx, uid, report.Settled > 0)
			return report, nil
		}
	}

	e.refreshIf(ctx, uid, report.Settled > 0)
	if report.Attempted > 0 || report.Deferred > 0 {
		logger.Info().Int("settled", report.Settled).Int("failed", report.Failed).
			Int("deferred", report.Deferred).Msg("sweep finished")
	}
	return report, nil
}

// finish moves a pending entry to a terminal status. Entries already
// terminal are left untouched.
func (e *Engine) finish(ctx context.Context, uid, id string, status domain.ClaimStatus, txID, reason string) error {
	now := clock.Millis(e.clock)
	err := e.queue.UpdateClaims(ctx, uid, func(claims []domain.PendingClaim) ([]domain.PendingClaim, error) {
		for i := range claims {
			if claims[i].ID != id || !claims[i].Status.CanTransitionTo(status) {
				continue
			}
			claims[i].Status = status
			claims[i].SettledAtMs = now
			claims[i].TransactionID = txID
			claims[i].Error = reason
		}
		return claims, nil
	})
	if err != nil {
		return payerrors.Wrapf(err, "failed to record claim %s", id)
	}
	return nil
}

func (e *Engine) refreshIf(ctx context.Context, uid string, cond bool) {
	if cond {
		e.refresh(ctx, uid)
	}
}

func (e *Engine) refresh(ctx context.Context, uid string) {
	if e.balances == nil {
		return
	}
	if _, err := e.balances.Refresh(ctx, uid); err != nil {
		e.logger.Warn().Err(err).Str("uid", uid).Msg("balance refresh failed")
	}
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	ev.AtMs = clock.Millis(e.clock)
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Debug().Err(err).Str("event_type", string(ev.Type)).Msg("failed to publish event")
	}
}

// isVerdict reports whether err is the ledger's final answer on a token.
func isVerdict(err error) bool {
	return errors.Is(err, payerrors.ErrSettlement) && !errors.Is(err, payerrors.ErrLedgerUnavailable)
}

// countPending counts pending entries from the one with id onward.
func countPending(snapshot []domain.PendingClaim, fromID string) int {
	n := 0
	started := false
	for _, c := range snapshot {
		if c.ID == fromID {
			started = true
		}
		if started && c.Status == domain.ClaimPending {
			n++
		}
	}
	return n
}
