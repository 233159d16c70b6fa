package balance_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paytoken/internal/balance"
	"github.com/mrz1836/paytoken/internal/clock"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/store"
	"github.com/mrz1836/paytoken/internal/testutil"
)

type fetcher struct {
	value int64
	err   error
}

func (f *fetcher) Balance(context.Context, string) (int64, error) {
	return f.value, f.err
}

type failingStore struct{}

func (failingStore) GetBalance(context.Context, string) (*domain.BalanceRecord, error) {
	return nil, testutil.ErrMockStore
}

func (failingStore) UpdateBalance(context.Context, string, func(*domain.BalanceRecord) error) error {
	return testutil.ErrMockStore
}

func TestView(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	rec := &events.Recorder{}
	clk := clock.NewManualClock(time.UnixMilli(1000))
	f := &fetcher{value: 500}

	v := balance.New(s, balance.WithFetcher(f), balance.WithPublisher(rec), balance.WithClock(clk))

	known, err := v.Known(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, known)

	got, err := v.Refresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)

	left, err := v.Reserve(ctx, "alice", 120)
	require.NoError(t, err)
	assert.Equal(t, int64(380), left)
	known, err = v.Known(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(380), known)

	stored, err := s.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.RefreshedAtMs)

	f.value = 450
	got, err = v.Refresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(450), got)

	assert.Equal(t, 2, rec.Count(events.BalanceRefreshed))
	assert.Equal(t, 1, rec.Count(events.BalanceDebited))
}

func TestView_RefreshFailureKeepsEstimate(t *testing.T) {
	ctx := context.Background()
	f := &fetcher{err: payerrors.ErrLedgerUnavailable}
	v := balance.New(store.NewMemoryStore(), balance.WithFetcher(f))
	require.NoError(t, v.Set(ctx, "alice", 75))

	_, err := v.Refresh(ctx, "alice")
	require.ErrorIs(t, err, payerrors.ErrLedgerUnavailable)

	known, err := v.Known(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(75), known)
}

func TestView_NoFetcher(t *testing.T) {
	_, err := balance.New(store.NewMemoryStore()).Refresh(context.Background(), "alice")
	require.ErrorIs(t, err, payerrors.ErrLedgerUnavailable)
}

func TestView_StoreFailure(t *testing.T) {
	v := balance.New(failingStore{})
	_, err := v.Known(context.Background(), "alice")
	require.ErrorIs(t, err, testutil.ErrMockStore)
	_, err = v.Reserve(context.Background(), "alice", 1)
	require.ErrorIs(t, err, testutil.ErrMockStore)
}

func TestView_ReserveRejectsUncoveredAmounts(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	v := balance.New(store.NewMemoryStore(), balance.WithPublisher(rec))
	require.NoError(t, v.Set(ctx, "alice", 100))

	for _, amount := range []int64{101, 0, -5} {
		_, err := v.Reserve(ctx, "alice", amount)
		require.ErrorIs(t, err, payerrors.ErrInsufficientBalance, "amount %d", amount)
		require.ErrorIs(t, err, payerrors.ErrAuthorization)
	}

	known, err := v.Known(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), known)
	assert.Zero(t, rec.Count(events.BalanceDebited))

	left, err := v.Reserve(ctx, "alice", 100)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestView_ConcurrentReservesNeverOverspend(t *testing.T) {
	ctx := context.Background()
	v := balance.New(store.NewMemoryStore())
	require.NoError(t, v.Set(ctx, "alice", 100))

	const attempts = 8
	var wg sync.WaitGroup
	var accepted atomic.Int32
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := v.Reserve(ctx, "alice", 30); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), accepted.Load())
	known, err := v.Known(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), known)
}
