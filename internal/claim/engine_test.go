package claim_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paytoken/internal/balance"
	"github.com/mrz1836/paytoken/internal/claim"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/ledger"
	"github.com/mrz1836/paytoken/internal/payment"
	"github.com/mrz1836/paytoken/internal/store"
	"github.com/mrz1836/paytoken/internal/testutil"
	"github.com/mrz1836/paytoken/internal/verify"
)

// flakySettler fails with ErrLedgerUnavailable while down.
type flakySettler struct {
	inner claim.Settler

	mu    sync.Mutex
	down  bool
	calls int
}

func (f *flakySettler) Settle(ctx context.Context, token, claimant string) (*domain.SettlementResult, error) {
	f.mu.Lock()
	f.calls++
	down := f.down
	f.mu.Unlock()
	if down {
		return nil, fmt.Errorf("%w: %w", payerrors.ErrLedgerUnavailable, testutil.ErrMockNetwork)
	}
	return f.inner.Settle(ctx, token, claimant)
}

func (f *flakySettler) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *flakySettler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	alice    *domain.Identity
	book     *ledger.Ledger
	verifier *verify.Verifier
	settler  *flakySettler
	queue    *store.MemoryStore
	view     *balance.View
	events   *events.Recorder
	engine   *claim.Engine
}

func newFixture(t *testing.T, opts ...claim.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	f := &fixture{
		alice:    auth.NewIdentity(t, "alice", "Alice"),
		verifier: verify.New(auth.Public),
		queue:    store.NewMemoryStore(),
		events:   &events.Recorder{},
	}
	f.book = ledger.NewMemory(f.verifier)
	for _, uid := range []string{"alice", "bob", "carol"} {
		require.NoError(t, f.book.OpenAccount(ctx, uid, 100))
	}
	f.settler = &flakySettler{inner: f.book}
	f.view = balance.New(store.NewMemoryStore(), balance.WithFetcher(f.book))

	base := []claim.Option{
		claim.WithBalances(f.view),
		claim.WithVerifier(f.verifier),
		claim.WithPublisher(f.events),
	}
	f.engine = claim.NewEngine(f.queue, f.settler, append(base, opts...)...)
	return f
}

func (f *fixture) verified(t *testing.T, recipient string, amount int64) *domain.VerifiedIntent {
	t.Helper()
	a := payment.NewAuthorizer(testutil.NewBalances(map[string]int64{"alice": 1000}))
	got, err := a.Authorize(context.Background(), f.alice, payment.Request{RecipientID: recipient, Amount: amount})
	require.NoError(t, err)
	v, err := f.verifier.Verify(context.Background(), got.Encoded)
	require.NoError(t, err)
	return v
}

func (f *fixture) ledgerBalance(t *testing.T, uid string) int64 {
	t.Helper()
	b, err := f.book.Balance(context.Background(), uid)
	require.NoError(t, err)
	return b
}

func (f *fixture) statuses(t *testing.T, uid string) []domain.ClaimStatus {
	t.Helper()
	claims, err := f.engine.Pending(context.Background(), uid)
	require.NoError(t, err)
	out := make([]domain.ClaimStatus, 0, len(claims))
	for _, c := range claims {
		out = append(out, c.Status)
	}
	return out
}

func TestClaim_OnlineSettlesAndRefreshes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	out, err := f.engine.Claim(ctx, "bob", f.verified(t, "bob", 30), true)
	require.NoError(t, err)
	require.NotNil(t, out.Settlement)
	assert.Nil(t, out.Queued)
	assert.False(t, out.Settlement.Replayed)

	known, err := f.view.Known(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(130), known)
	assert.Empty(t, f.statuses(t, "bob"))
	assert.Equal(t, 1, f.events.Count(events.ClaimSettled))
}

func TestClaim_OnlineSurfacesRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Claim(ctx, "bob", f.verified(t, "bob", 500), true)
	require.ErrorIs(t, err, payerrors.ErrInsufficientFunds)
	assert.Empty(t, f.statuses(t, "bob"))
}

func TestClaim_OnlineQueuesWhenLedgerUnreachable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	v := f.verified(t, "bob", 30)

	f.settler.setDown(true)
	out, err := f.engine.Claim(ctx, "bob", v, true)
	require.NoError(t, err)
	assert.Nil(t, out.Settlement)
	require.NotNil(t, out.Queued)
	assert.Equal(t, v.Intent.Nonce, out.Queued.Nonce)
	assert.Equal(t, 1, f.settler.callCount())
	assert.Equal(t, []domain.ClaimStatus{domain.ClaimPending}, f.statuses(t, "bob"))
	assert.Equal(t, 1, f.events.Count(events.ClaimQueued))
	assert.Zero(t, f.events.Count(events.ClaimSettled))

	f.settler.setDown(false)
	report, err := f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, int64(130), f.ledgerBalance(t, "bob"))
}

func TestClaim_WrongClaimantRejectedLocally(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Claim(context.Background(), "carol", f.verified(t, "bob", 10), false)
	require.ErrorIs(t, err, payerrors.ErrWrongClaimant)
	assert.Zero(t, f.settler.callCount())
	assert.Empty(t, f.statuses(t, "carol"))
}

func TestClaim_OfflineQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	v := f.verified(t, "bob", 30)

	out, err := f.engine.Claim(ctx, "bob", v, false)
	require.NoError(t, err)
	require.NotNil(t, out.Queued)
	assert.Equal(t, domain.ClaimPending, out.Queued.Status)
	assert.Equal(t, v.Intent.Nonce, out.Queued.Nonce)
	assert.Equal(t, v.Token, out.Queued.TokenStr)
	assert.NotEmpty(t, out.Queued.ID)

	_, err = f.engine.Claim(ctx, "bob", v, false)
	require.ErrorIs(t, err, payerrors.ErrClaimExists)

	assert.Equal(t, []domain.ClaimStatus{domain.ClaimPending}, f.statuses(t, "bob"))
	assert.Zero(t, f.settler.callCount())
	assert.Equal(t, int64(100), f.ledgerBalance(t, "bob"))
	assert.Equal(t, 1, f.events.Count(events.ClaimQueued))
}

func TestClaimToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	v := f.verified(t, "bob", 5)

	uri, err := payment.TokenURI("paytoken://claim", v.Token)
	require.NoError(t, err)
	out, err := f.engine.ClaimToken(ctx, "bob", uri, false)
	require.NoError(t, err)
	assert.Equal(t, v.Intent.Nonce, out.Queued.Nonce)

	_, err = f.engine.ClaimToken(ctx, "bob", "not a token", false)
	require.ErrorIs(t, err, payerrors.ErrMalformedToken)

	_, err = claim.NewEngine(f.queue, f.settler).ClaimToken(ctx, "bob", v.Token, false)
	require.ErrorIs(t, err, payerrors.ErrTrustAnchorMissing)
}

func TestSweep_EventuallySettlesEachClaimOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, amount := range []int64{10, 20, 30} {
		_, err := f.engine.Claim(ctx, "bob", f.verified(t, "bob", amount), false)
		require.NoError(t, err)
	}

	f.settler.setDown(true)
	report, err := f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Settled)
	assert.Equal(t, 3, report.Deferred)
	assert.Equal(t, 1, f.settler.callCount())
	assert.Equal(t, []domain.ClaimStatus{domain.ClaimPending, domain.ClaimPending, domain.ClaimPending}, f.statuses(t, "bob"))

	f.settler.setDown(false)
	report, err = f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Settled)
	assert.Equal(t, []domain.ClaimStatus{domain.ClaimSuccess, domain.ClaimSuccess, domain.ClaimSuccess}, f.statuses(t, "bob"))

	report, err = f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)

	assert.Equal(t, int64(160), f.ledgerBalance(t, "bob"))
	known, err := f.view.Known(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(160), known)

	claims, err := f.engine.Pending(ctx, "bob")
	require.NoError(t, err)
	for _, c := range claims {
		assert.NotEmpty(t, c.TransactionID)
		assert.NotZero(t, c.SettledAtMs)
	}
}

func TestSweep_RejectionIsTerminalAndIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bearer := f.verified(t, "", 15)
	_, err := f.engine.Claim(ctx, "bob", bearer, false)
	require.NoError(t, err)
	_, err = f.engine.Claim(ctx, "bob", f.verified(t, "bob", 25), false)
	require.NoError(t, err)

	_, err = f.book.Settle(ctx, bearer.Token, "carol")
	require.NoError(t, err)

	report, err := f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, []domain.ClaimStatus{domain.ClaimFailed, domain.ClaimSuccess}, f.statuses(t, "bob"))

	claims, err := f.engine.Pending(ctx, "bob")
	require.NoError(t, err)
	assert.Contains(t, claims[0].Error, payerrors.ErrAlreadySettled.Error())
	assert.Equal(t, 1, f.events.Count(events.ClaimFailed))

	calls := f.settler.callCount()
	_, err = f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, calls, f.settler.callCount())
	assert.Equal(t, int64(125), f.ledgerBalance(t, "bob"))
}

func TestSweep_SkippedWhileOffline(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewOnline(false)
	f := newFixture(t, claim.WithConnectivity(conn))
	_, err := f.engine.Claim(ctx, "bob", f.verified(t, "bob", 10), false)
	require.NoError(t, err)

	report, err := f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, report.Offline)
	assert.Zero(t, f.settler.callCount())

	conn.Set(true)
	report, err = f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, report.Offline)
	assert.Equal(t, 1, report.Settled)
}

// gatedSettler blocks every Settle until release is closed.
type gatedSettler struct {
	inner   claim.Settler
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSettler) Settle(ctx context.Context, token, claimant string) (*domain.SettlementResult, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.inner.Settle(ctx, token, claimant)
}

func TestSweep_ConcurrentCallsShareOneRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gate := &gatedSettler{inner: f.book, entered: make(chan struct{}), release: make(chan struct{})}
	engine := claim.NewEngine(f.queue, gate)

	_, err := engine.Claim(ctx, "bob", f.verified(t, "bob", 10), false)
	require.NoError(t, err)

	reports := make([]claim.SweepReport, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], _ = engine.Sweep(ctx, "bob")
	}()
	<-gate.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], _ = engine.Sweep(ctx, "bob")
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	assert.Equal(t, 1, reports[0].Settled)
	assert.Equal(t, 1, reports[1].Settled)
	assert.True(t, reports[1].Shared)
	assert.Equal(t, int64(110), f.ledgerBalance(t, "bob"))
}

func TestSweep_ClaimQueuedDuringSweepStaysPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gate := &gatedSettler{inner: f.book, entered: make(chan struct{}), release: make(chan struct{})}
	engine := claim.NewEngine(store.NewFileStore(t.TempDir()), gate)

	_, err := engine.Claim(ctx, "bob", f.verified(t, "bob", 10), false)
	require.NoError(t, err)

	done := make(chan claim.SweepReport, 1)
	go func() {
		report, sweepErr := engine.Sweep(ctx, "bob")
		assert.NoError(t, sweepErr)
		done <- report
	}()
	<-gate.entered

	late, err := engine.Claim(ctx, "bob", f.verified(t, "bob", 20), false)
	require.NoError(t, err)
	close(gate.release)

	report := <-done
	assert.Equal(t, 1, report.Settled)

	claims, err := engine.Pending(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, domain.ClaimSuccess, claims[0].Status)
	assert.Equal(t, domain.ClaimPending, claims[1].Status)
	assert.Equal(t, late.Queued.ID, claims[1].ID)
	assert.Equal(t, int64(110), f.ledgerBalance(t, "bob"))
}

func TestSweep_StopsOnCanceledContext(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Claim(context.Background(), "bob", f.verified(t, "bob", 10), false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Equal(t, 1, report.Deferred)
	assert.Zero(t, f.settler.callCount())
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (c *countingRefresher) Refresh(context.Context, string) (int64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return 0, nil
}

func TestSweep_RefreshesOncePerSweep(t *testing.T) {
	ctx := context.Background()
	refresher := &countingRefresher{}
	f := newFixture(t, claim.WithBalances(refresher))

	_, err := f.engine.Claim(ctx, "bob", f.verified(t, "bob", 10), false)
	require.NoError(t, err)
	_, err = f.engine.Claim(ctx, "bob", f.verified(t, "bob", 20), false)
	require.NoError(t, err)
	assert.Zero(t, refresher.calls)

	report, err := f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Settled)
	assert.Equal(t, 1, refresher.calls)

	report, err = f.engine.Sweep(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 2, f.settler.callCount())
}
