package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

func TestCodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"already settled", payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrAlreadySettled), CodeAlreadySettled},
		{"unknown party", payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrUnknownParty), CodeUnknownParty},
		{"insufficient funds", payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrInsufficientFunds), CodeInsufficientFunds},
		{"wrong claimant", payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrWrongClaimant), CodeWrongClaimant},
		{"invalid signature", payerrors.Kind(payerrors.ErrVerification, payerrors.ErrInvalidSignature), CodeInvalidSignature},
		{"malformed", payerrors.Kind(payerrors.ErrVerification, payerrors.ErrMalformedToken), CodeMalformedToken},
		{"provisioning", payerrors.ErrProvisioning, CodeProvisioningRefused},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, status := CodeFor(tc.err)
			assert.Equal(t, tc.code, code)
			assert.NotEqual(t, http.StatusInternalServerError, status)

			back := ErrorFor(code, tc.err.Error())
			assert.Equal(t, tc.err.Error(), back.Error())
			for _, target := range []error{payerrors.ErrSettlement, payerrors.ErrVerification, payerrors.ErrProvisioning} {
				assert.Equal(t, errors.Is(tc.err, target), errors.Is(back, target))
			}
		})
	}

	code, status := CodeFor(errors.New("boom"))
	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, http.StatusInternalServerError, status)

	var remote *RemoteError
	require.ErrorAs(t, ErrorFor("teapot", "short and stout"), &remote)
	assert.Equal(t, "teapot", remote.Code)
}

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, BalanceResponse{UID: "alice", Balance: 7})
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		var req SettleRequest
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, decodeBody(r, &req))
		WriteSuccess(w, http.StatusOK, req)
	})
	mux.HandleFunc("/settled", func(w http.ResponseWriter, _ *http.Request) {
		WriteErr(w, payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrAlreadySettled))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		WriteErr(w, errors.New("database on fire"))
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL+"/", time.Second, payerrors.ErrLedgerUnavailable)

	var bal BalanceResponse
	require.NoError(t, c.Get(ctx, "/ok", &bal))
	assert.Equal(t, int64(7), bal.Balance)

	var echoed SettleRequest
	require.NoError(t, c.Post(ctx, "/echo", SettleRequest{Token: "t", Claimant: "bob"}, &echoed))
	assert.Equal(t, "bob", echoed.Claimant)

	err := c.Get(ctx, "/settled", nil)
	require.ErrorIs(t, err, payerrors.ErrAlreadySettled)
	require.ErrorIs(t, err, payerrors.ErrSettlement)

	require.ErrorIs(t, c.Get(ctx, "/broken", nil), payerrors.ErrLedgerUnavailable)
	require.ErrorIs(t, c.Get(ctx, "/html", nil), payerrors.ErrLedgerUnavailable)

	down := NewClient("http://127.0.0.1:1", 200*time.Millisecond, payerrors.ErrAuthorityUnavailable)
	require.ErrorIs(t, down.Get(ctx, "/ok", nil), payerrors.ErrAuthorityUnavailable)
}
