package payreq

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/payment"
	"github.com/mrz1836/paytoken/internal/testutil"
)

func ptr(v int64) *int64 { return &v }

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target domain.PaymentTarget
	}{
		{"fixed", domain.PaymentTarget{UID: "bob", Name: "Bob's Café", Amount: ptr(250), Memo: "coffee & cake"}},
		{"fixed with image and tips", domain.PaymentTarget{UID: "bob", Name: "Bob", Image: "https://img.example.com/b.png?s=64", Amount: ptr(1), AllowTips: true}},
		{"range", domain.PaymentTarget{UID: "carol", Name: "Carol", Min: ptr(5), Max: ptr(500), AllowTips: true}},
		{"min only", domain.PaymentTarget{UID: "carol", Name: "Carol", Min: ptr(0)}},
		{"max only", domain.PaymentTarget{UID: "carol", Max: ptr(20), Memo: "tips jar"}},
		{"neither", domain.PaymentTarget{UID: "dave", Name: "Dave"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			uri, err := Encode("https://pay.example.com/r", &tc.target)
			require.NoError(t, err)

			got, err := Decode(uri)
			require.NoError(t, err)
			assert.Equal(t, tc.target, *got)
		})
	}
}

func TestEncode_Parameters(t *testing.T) {
	t.Parallel()

	uri, err := Encode("paytoken://request?v=1", &domain.PaymentTarget{UID: "bob", Name: "Bob", Min: ptr(5), Max: ptr(10)})
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "paytoken", u.Scheme)
	assert.Equal(t, "1", q.Get("v"))
	assert.Equal(t, "bob", q.Get(ParamPay))
	assert.Equal(t, "5", q.Get(ParamMin))
	assert.Equal(t, "10", q.Get(ParamMax))
	assert.Equal(t, "false", q.Get(ParamTips))
	assert.False(t, q.Has(ParamAmount))
	assert.False(t, q.Has(ParamImage))
	assert.False(t, q.Has(ParamMemo))
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"missing pay":       "https://x/?name=Bob&amount=5",
		"amount and range":  "https://x/?pay=bob&amount=5&min=1",
		"zero amount":       "https://x/?pay=bob&amount=0",
		"negative min":      "https://x/?pay=bob&min=-1",
		"min above max":     "https://x/?pay=bob&min=10&max=5",
		"non-numeric":       "https://x/?pay=bob&amount=ten",
		"fractional amount": "https://x/?pay=bob&amount=1.5",
		"bad tips":          "https://x/?pay=bob&tips=maybe",
		"bad url":           "://nope",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(raw)
			require.ErrorIs(t, err, payerrors.ErrInvalidPaymentRequest)
		})
	}
}

func TestDecode_TipsSpellings(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"1", "true", "TRUE", "t"} {
		got, err := Decode("https://x/?pay=bob&tips=" + v)
		require.NoError(t, err)
		assert.True(t, got.AllowTips, v)
	}
	got, err := Decode("https://x/?pay=bob")
	require.NoError(t, err)
	assert.False(t, got.AllowTips)
}

func TestTip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base, percent, tip, total int64
	}{
		{100, 0, 0, 100},
		{100, 150, 150, 250},
		{99, 15, 14, 113},
		{1, 99, 0, 1},
		{7, 10, 0, 7},
		{0, 50, 0, 0},
	}
	for _, tc := range tests {
		tip, total, err := Tip(tc.base, tc.percent)
		require.NoError(t, err)
		assert.Equal(t, tc.tip, tip, "tip(%d, %d%%)", tc.base, tc.percent)
		assert.Equal(t, tc.total, total)
	}

	_, _, err := Tip(-1, 10)
	require.ErrorIs(t, err, payerrors.ErrInvalidPaymentRequest)
	_, _, err = Tip(1<<62, 400)
	require.ErrorIs(t, err, payerrors.ErrInvalidPaymentRequest)
}

func TestBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  domain.PaymentTarget
		balance int64
		want    domain.AmountBounds
	}{
		{"range under balance", domain.PaymentTarget{Min: ptr(5), Max: ptr(50)}, 100, domain.AmountBounds{Min: 5, Max: 50}},
		{"max capped by balance", domain.PaymentTarget{Min: ptr(5), Max: ptr(500)}, 100, domain.AmountBounds{Min: 5, Max: 100}},
		{"zero min raised to one", domain.PaymentTarget{Min: ptr(0), Max: ptr(10)}, 100, domain.AmountBounds{Min: 1, Max: 10}},
		{"open range", domain.PaymentTarget{}, 40, domain.AmountBounds{Min: 1, Max: 40}},
		{"fixed", domain.PaymentTarget{Amount: ptr(30)}, 10, domain.AmountBounds{Min: 30, Max: 30}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Bounds(&tc.target, tc.balance))
		})
	}

	assert.True(t, Bounds(&domain.PaymentTarget{Min: ptr(50)}, 10).Empty())
}

func TestNewQuote(t *testing.T) {
	t.Parallel()

	range5to50 := &domain.PaymentTarget{UID: "bob", Min: ptr(5), Max: ptr(50), AllowTips: true}

	q, err := NewQuote(range5to50, 100, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, Quote{Base: 20, Tip: 2, Total: 22, Bounds: domain.AmountBounds{Min: 7, Max: 52}}, *q)
	assert.True(t, q.Bounds.Contains(q.Total))

	q, err = NewQuote(range5to50, 100, 60, 0)
	require.NoError(t, err)
	assert.False(t, q.Bounds.Contains(q.Total))

	q, err = NewQuote(&domain.PaymentTarget{UID: "bob", Amount: ptr(40)}, 100, 999, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(40), q.Total)

	_, err = NewQuote(&domain.PaymentTarget{UID: "bob", Amount: ptr(40)}, 100, 0, 5)
	require.ErrorIs(t, err, payerrors.ErrInvalidPaymentRequest)
}

func TestQuote_OutOfRangeRejectedBeforeSigning(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	auth := testutil.NewAuthority(t)
	alice := auth.NewIdentity(t, "alice", "Alice")
	balances := testutil.NewBalances(map[string]int64{"alice": 30})
	authorizer := payment.NewAuthorizer(balances)

	target := &domain.PaymentTarget{UID: "bob", Min: ptr(5), Max: ptr(500)}
	q, err := NewQuote(target, 30, 31, 0)
	require.NoError(t, err)

	_, err = authorizer.Authorize(ctx, alice, payment.Request{RecipientID: target.UID, Amount: q.Total, Bounds: &q.Bounds})
	require.ErrorIs(t, err, payerrors.ErrOutOfRange)

	known, err := balances.Known(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(30), known)

	q, err = NewQuote(target, 30, 30, 0)
	require.NoError(t, err)
	_, err = authorizer.Authorize(ctx, alice, payment.Request{RecipientID: target.UID, Amount: q.Total, Bounds: &q.Bounds})
	require.NoError(t, err)
}
