// Package api defines the JSON wire contract shared by the reference server
// and the HTTP clients for the ledger and the Trust Authority.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorBody.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal"
	CodeMalformedToken      = "malformed_token"
	CodeInvalidCertificate  = "invalid_certificate"
	CodeInvalidSignature    = "invalid_signature"
	CodeAlreadySettled      = "already_settled"
	CodeUnknownParty        = "unknown_party"
	CodeInsufficientFunds   = "insufficient_funds"
	CodeWrongClaimant       = "wrong_claimant"
	CodeSettlementRejected  = "settlement_rejected"
	CodeProvisioningRefused = "provisioning_refused"
)

// CertificateRequest asks the Trust Authority to certify a member key.
type CertificateRequest struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

// CertificateResponse carries an issued certificate.
type CertificateResponse struct {
	Certificate string `json:"certificate"`
}

// AnchorResponse carries the trust-anchor public key in hex.
type AnchorResponse struct {
	PublicKey string `json:"publicKey"`
}

// BalanceResponse carries an authoritative balance.
type BalanceResponse struct {
	UID     string `json:"uid"`
	Balance int64  `json:"balance"`
}

// SettleRequest asks the ledger to settle a token for a claimant.
type SettleRequest struct {
	Token    string `json:"token"`
	Claimant string `json:"claimant,omitempty"`
}

// HistoryResponse lists ledger transactions, newest first.
type HistoryResponse struct {
	Transactions []domain.LedgerTransaction `json:"transactions"`
}

// kindCodes maps kind sentinels to codes. Kinds are checked before
// categories so the most specific code wins.
//
//nolint:gochecknoglobals // Fixed lookup table
var kindCodes = []struct {
	err    error
	code   string
	status int
}{
	{payerrors.ErrMalformedToken, CodeMalformedToken, http.StatusBadRequest},
	{payerrors.ErrInvalidCertificate, CodeInvalidCertificate, http.StatusUnprocessableEntity},
	{payerrors.ErrInvalidSignature, CodeInvalidSignature, http.StatusUnprocessableEntity},
	{payerrors.ErrAlreadySettled, CodeAlreadySettled, http.StatusConflict},
	{payerrors.ErrUnknownParty, CodeUnknownParty, http.StatusNotFound},
	{payerrors.ErrInsufficientFunds, CodeInsufficientFunds, http.StatusConflict},
	{payerrors.ErrWrongClaimant, CodeWrongClaimant, http.StatusForbidden},
	{payerrors.ErrSettlement, CodeSettlementRejected, http.StatusConflict},
	{payerrors.ErrProvisioning, CodeProvisioningRefused, http.StatusUnprocessableEntity},
	{payerrors.ErrInvalidKey, CodeProvisioningRefused, http.StatusUnprocessableEntity},
	{payerrors.ErrEmptyValue, CodeBadRequest, http.StatusBadRequest},
}

// CodeFor returns the wire code and HTTP status for err.
func CodeFor(err error) (string, int) {
	for _, kc := range kindCodes {
		if errors.Is(err, kc.err) {
			return kc.code, kc.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// ErrorFor rebuilds a sentinel-wrapped error from a wire code so callers can
// use errors.Is across the HTTP boundary.
func ErrorFor(code, message string) error {
	var err error
	switch code {
	case CodeMalformedToken:
		err = payerrors.Kind(payerrors.ErrVerification, payerrors.ErrMalformedToken)
	case CodeInvalidCertificate:
		err = payerrors.Kind(payerrors.ErrVerification, payerrors.ErrInvalidCertificate)
	case CodeInvalidSignature:
		err = payerrors.Kind(payerrors.ErrVerification, payerrors.ErrInvalidSignature)
	case CodeAlreadySettled:
		err = payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrAlreadySettled)
	case CodeUnknownParty:
		err = payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrUnknownParty)
	case CodeInsufficientFunds:
		err = payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrInsufficientFunds)
	case CodeWrongClaimant:
		err = payerrors.Kind(payerrors.ErrSettlement, payerrors.ErrWrongClaimant)
	case CodeSettlementRejected:
		err = payerrors.ErrSettlement
	case CodeProvisioningRefused:
		err = payerrors.ErrProvisioning
	case CodeBadRequest:
		err = payerrors.ErrEmptyValue
	default:
		return &RemoteError{Code: code, Message: message}
	}
	if message == "" {
		return err
	}
	return &wireError{msg: message, err: err}
}

// wireError keeps the server's message while matching the local sentinel.
type wireError struct {
	msg string
	err error
}

func (e *wireError) Error() string { return e.msg }

func (e *wireError) Unwrap() error { return e.err }

// RemoteError is a server failure with no local sentinel.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "remote error: " + e.Code
	}
	return "remote error: " + e.Code + ": " + e.Message
}

// WriteSuccess writes data inside a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "failed to encode response")
		return
	}
	write(w, status, Envelope{Success: true, Data: raw})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// WriteErr maps err to a code and status and writes it.
func WriteErr(w http.ResponseWriter, err error) {
	code, status := CodeFor(err)
	WriteError(w, status, code, err.Error())
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
