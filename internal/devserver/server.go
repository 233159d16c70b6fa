// Package devserver is a reference Trust Authority and Ledger served over
// HTTP. It backs `paytoken serve` and the HTTP client tests.
package devserver

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/mrz1836/paytoken/internal/api"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/domain"
	payerrors "github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/ledger"
)

// CertificateIssuer issues member certificates.
type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, uid, name, publicKeyHex string) (string, error)
}

// AccountOpener opens ledger accounts for newly certified members.
type AccountOpener interface {
	OpenAccount(ctx context.Context, uid string, opening int64) error
}

// Ledger is the ledger surface the server exposes.
type Ledger interface {
	ledger.Service
	AccountOpener
}

// Server routes authority and ledger requests.
type Server struct {
	issuer  CertificateIssuer
	anchor  ed25519.PublicKey
	ledger  Ledger
	opening int64
	logger  zerolog.Logger
	router  *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithOpeningBalance sets the balance credited to each new account.
func WithOpeningBalance(amount int64) Option {
	return func(s *Server) {
		s.opening = amount
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server.
func New(issuer CertificateIssuer, anchor ed25519.PublicKey, l Ledger, opts ...Option) *Server {
	s := &Server{
		issuer:  issuer,
		anchor:  anchor,
		ledger:  l,
		opening: constants.DefaultOpeningBalance,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "devserver").Logger()
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(hlog.NewHandler(s.logger), hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/certificates", s.handleIssueCertificate).Methods(http.MethodPost)
	v1.HandleFunc("/anchor", s.handleAnchor).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{uid}/balance", s.handleBalance).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{uid}/transactions", s.handleHistory).Methods(http.MethodGet)
	v1.HandleFunc("/transactions", s.handleTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/settlements", s.handleSettle).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.CodeNotFound, "no such route")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	api.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req api.CertificateRequest
	if err := api.DecodeBody(r, &req); err != nil {
		api.WriteErr(w, err)
		return
	}

	cert, err := s.issuer.IssueCertificate(r.Context(), req.UID, req.Name, req.PublicKey)
	if err != nil {
		api.WriteErr(w, err)
		return
	}
	if err := s.ledger.OpenAccount(r.Context(), req.UID, s.opening); err != nil {
		api.WriteErr(w, err)
		return
	}

	hlog.FromRequest(r).Info().Str("uid", req.UID).Msg("certificate issued")
	api.WriteSuccess(w, http.StatusCreated, api.CertificateResponse{Certificate: cert})
}

func (s *Server) handleAnchor(w http.ResponseWriter, _ *http.Request) {
	api.WriteSuccess(w, http.StatusOK, api.AnchorResponse{PublicKey: hex.EncodeToString(s.anchor)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	balance, err := s.ledger.Balance(r.Context(), uid)
	if err != nil {
		api.WriteErr(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, api.BalanceResponse{UID: uid, Balance: balance})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			api.WriteError(w, http.StatusBadRequest, api.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	txs, err := s.ledger.History(r.Context(), mux.Vars(r)["uid"], limit)
	if err != nil {
		api.WriteErr(w, err)
		return
	}
	if txs == nil {
		txs = []domain.LedgerTransaction{}
	}
	api.WriteSuccess(w, http.StatusOK, api.HistoryResponse{Transactions: txs})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := api.DecodeBody(r, &req); err != nil {
		api.WriteErr(w, err)
		return
	}

	tx, err := s.ledger.Transfer(r.Context(), req)
	if err != nil {
		s.reject(r, err)
		api.WriteErr(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, tx)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req api.SettleRequest
	if err := api.DecodeBody(r, &req); err != nil {
		api.WriteErr(w, err)
		return
	}
	if req.Token == "" {
		api.WriteError(w, http.StatusBadRequest, api.CodeBadRequest, "token is required")
		return
	}

	res, err := s.ledger.Settle(r.Context(), req.Token, req.Claimant)
	if err != nil {
		s.reject(r, err)
		api.WriteErr(w, err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, res)
}

func (s *Server) reject(r *http.Request, err error) {
	logger := hlog.FromRequest(r)
	if errors.Is(err, payerrors.ErrSettlement) {
		logger.Info().Err(err).Msg("request rejected")
		return
	}
	logger.Error().Err(err).Msg("request failed")
}
