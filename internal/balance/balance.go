// Package balance maintains the device's last known balance.
//
// The known balance is a local estimate: the last value fetched from the
// ledger minus the payments authorized on this device since. The ledger stays
// authoritative and Refresh overwrites the estimate.
package balance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/store"
)

// Fetcher reads the authoritative balance from the ledger.
type Fetcher interface {
	Balance(ctx context.Context, uid string) (int64, error)
}

// View reads and adjusts the cached balance.
type View struct {
	store     store.BalanceStore
	fetcher   Fetcher
	publisher events.Publisher
	clock     clock.Clock
	logger    zerolog.Logger
}

// Option configures a View.
type Option func(*View)

// WithFetcher enables Refresh.
func WithFetcher(f Fetcher) Option {
	return func(v *View) {
		v.fetcher = f
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(v *View) {
		v.publisher = p
	}
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(v *View) {
		v.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(v *View) {
		v.logger = l
	}
}

// New creates a View over s.
func New(s store.BalanceStore, opts ...Option) *View {
	v := &View{
		store:     s,
		publisher: events.Nop{},
		clock:     clock.RealClock{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With().Str("component", "balance").Logger()
	return v
}

// Known returns the cached balance for uid. It never contacts the ledger.
func (v *View) Known(ctx context.Context, uid string) (int64, error) {
	rec, err := v.store.GetBalance(ctx, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return rec.Known, nil
}

// Reserve checks amount against the cached balance and debits it in one
// store update. amount must be positive and no larger than the balance;
// otherwise the balance is left unchanged and ErrInsufficientBalance is
// returned. It returns the balance after the debit.
func (v *View) Reserve(ctx context.Context, uid string, amount int64) (int64, error) {
	var after int64
	var rejected error
	err := v.store.UpdateBalance(ctx, uid, func(rec *domain.BalanceRecord) error {
		if amount <= 0 || amount > rec.Known {
			rejected = payerrors.Kindf(payerrors.ErrAuthorization, payerrors.ErrInsufficientBalance,
				"amount %d, known balance %d", amount, rec.Known)
			return rejected
		}
		rec.Known -= amount
		after = rec.Known
		return nil
	})
	if rejected != nil {
		return 0, rejected
	}
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}

	v.logger.Debug().Str("uid", uid).Int64("amount", amount).Int64("balance", after).Msg("known balance debited")
	v.publish(ctx, events.Event{Type: events.BalanceDebited, UID: uid, Amount: amount, Balance: after})
	return after, nil
}

// Refresh replaces the cached balance with the ledger's and returns it.
func (v *View) Refresh(ctx context.Context, uid string) (int64, error) {
	if v.fetcher == nil {
		return 0, payerrors.ErrLedgerUnavailable
	}

	amount, err := v.fetcher.Balance(ctx, uid)
	if err != nil {
		return 0, err
	}

	now := clock.Millis(v.clock)
	err = v.store.UpdateBalance(ctx, uid, func(rec *domain.BalanceRecord) error {
		rec.Known = amount
		rec.RefreshedAtMs = now
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store balance: %w", err)
	}

	v.logger.Debug().Str("uid", uid).Int64("balance", amount).Msg("known balance refreshed")
	v.publish(ctx, events.Event{Type: events.BalanceRefreshed, UID: uid, Balance: amount})
	return amount, nil
}

// Set overwrites the cached balance without contacting the ledger.
func (v *View) Set(ctx context.Context, uid string, amount int64) error {
	return v.store.UpdateBalance(ctx, uid, func(rec *domain.BalanceRecord) error {
		rec.Known = amount
		return nil
	})
}

func (v *View) publish(ctx context.Context, e events.Event) {
	e.AtMs = clock.Millis(v.clock)
	if err := v.publisher.Publish(ctx, e); err != nil {
		v.logger.Debug().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish event")
	}
}
