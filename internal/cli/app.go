package cli

import (
	"context"
	"crypto/ed25519"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/authority"
	"github.com/mrz1836/paytoken/internal/balance"
	"github.com/mrz1836/paytoken/internal/claim"
	"github.com/mrz1836/paytoken/internal/config"
	"github.com/mrz1836/paytoken/internal/crypto/anchor"
	"github.com/mrz1836/paytoken/internal/domain"
	"github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/identity"
	"github.com/mrz1836/paytoken/internal/ledger"
	"github.com/mrz1836/paytoken/internal/logging"
	"github.com/mrz1836/paytoken/internal/payment"
	"github.com/mrz1836/paytoken/internal/store"
	"github.com/mrz1836/paytoken/internal/verify"
)

// app holds the per-invocation state shared by every command: flags, the
// loaded configuration, the logger and lazily opened stores and clients.
type app struct {
	flags  *GlobalFlags
	cfg    *config.Config
	logger zerolog.Logger
	bus    *events.Bus

	st      store.Store
	keys    store.KeyStore
	closers []func() error
}

func newApp(flags *GlobalFlags) *app {
	return &app{flags: flags, logger: zerolog.Nop()}
}

// init builds the logger and loads configuration for cmd. It runs once per
// invocation from the root command's PersistentPreRunE.
func (a *app) init(cmd *cobra.Command) error {
	home := a.flags.ConfigDir
	if home == "" {
		dir, err := config.GlobalConfigDir()
		if err != nil {
			return err
		}
		home = dir
	}

	logger, closer := InitLogger(a.flags.Verbose, a.flags.Quiet, home)
	a.logger = logger
	a.closers = append(a.closers, closer.Close)

	ctx := logger.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	cfg, err := config.Load(ctx,
		config.WithHomeDir(home),
		config.WithFlags(cmd.Flags(), configFlagBindings()),
	)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.bus = events.NewBus(logger, cfg.Events.Buffer)
	a.closers = append(a.closers, a.bus.Close)
	return nil
}

// Close releases everything opened during the invocation, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Debug().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

// uid returns the acting user id.
func (a *app) uid() (string, error) {
	if a.cfg.User.UID == "" {
		return "", fmt.Errorf("%w: set user.uid or pass --uid", errors.ErrIdentityRequired)
	}
	return a.cfg.User.UID, nil
}

// stores opens the configured backend once. Keys are sealed when a
// passphrase is available.
func (a *app) stores(ctx context.Context) (store.Store, store.KeyStore, error) {
	if a.st != nil {
		return a.st, a.keys, nil
	}

	switch a.cfg.Storage.Backend {
	case config.BackendRedis:
		rs, err := store.DialRedis(ctx, a.cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, rs.Close)
		a.st = rs
	case config.BackendMemory:
		a.st = store.NewMemoryStore()
	default:
		a.st = store.NewFileStore(a.cfg.DataDir(), store.WithLockTimeout(a.cfg.Storage.LockTimeout))
	}

	a.keys = a.st
	sealed := false
	if pass := a.cfg.Passphrase(); pass != "" {
		a.keys = store.NewSealedKeyStore(a.st, pass)
		sealed = true
	}
	log := a.component("store")
	log.Debug().
		Str("backend", a.cfg.Storage.Backend).
		Str("redis_url", logging.SafeValue("redis_url", a.cfg.Storage.RedisURL)).
		Bool("sealed", sealed).
		Msg("local stores opened")
	return a.st, a.keys, nil
}

func (a *app) component(name string) zerolog.Logger {
	return a.logger.With().Str("component", name).Logger()
}

func (a *app) ledgerClient() *ledger.Client {
	return ledger.NewClient(a.cfg.Ledger.URL, a.cfg.Ledger.Timeout)
}

func (a *app) authorityClient() *authority.Client {
	return authority.NewClient(a.cfg.Authority.URL, a.cfg.Authority.Timeout)
}

// trustAnchor returns trust.anchor when set, otherwise the anchor file
// written by 'anchor fetch'.
func (a *app) trustAnchor() (ed25519.PublicKey, error) {
	if a.cfg.Trust.Anchor != "" {
		return anchor.ParsePublicKeyHex(a.cfg.Trust.Anchor)
	}
	return anchor.ReadPublicKeyFile(a.cfg.AnchorFilePath())
}

func (a *app) balances(ctx context.Context) (*balance.View, error) {
	st, _, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	return balance.New(st,
		balance.WithFetcher(a.ledgerClient()),
		balance.WithPublisher(a.bus),
		balance.WithLogger(a.component("balance")),
	), nil
}

func (a *app) provisioner(ctx context.Context) (*identity.Provisioner, error) {
	_, keys, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	return identity.NewProvisioner(keys, a.authorityClient(),
		identity.WithPublisher(a.bus),
		identity.WithLogger(a.component("identity")),
	), nil
}

// identity loads the acting user's identity.
func (a *app) identity(ctx context.Context) (*domain.Identity, error) {
	uid, err := a.uid()
	if err != nil {
		return nil, err
	}
	p, err := a.provisioner(ctx)
	if err != nil {
		return nil, err
	}
	id, err := p.Load(ctx, uid)
	if stderrors.Is(err, errors.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: no key stored for %s", errors.ErrIdentityRequired, uid)
	}
	return id, err
}

func (a *app) authorizer(ctx context.Context) (*payment.Authorizer, error) {
	balances, err := a.balances(ctx)
	if err != nil {
		return nil, err
	}
	lc := a.ledgerClient()
	return payment.NewAuthorizer(balances,
		payment.WithSyncer(lc, lc),
		payment.WithPublisher(a.bus),
		payment.WithLogger(a.component("authorizer")),
	), nil
}

func (a *app) verifier() (*verify.Verifier, error) {
	pub, err := a.trustAnchor()
	if err != nil {
		return nil, err
	}
	return verify.New(pub), nil
}

func (a *app) engine(ctx context.Context) (*claim.Engine, error) {
	st, _, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := a.balances(ctx)
	if err != nil {
		return nil, err
	}
	lc := a.ledgerClient()
	opts := []claim.Option{
		claim.WithBalances(balances),
		claim.WithConnectivity(lc),
		claim.WithPublisher(a.bus),
		claim.WithSettleTimeout(a.cfg.Claims.SettleTimeout),
		claim.WithLogger(a.component("claim")),
	}
	// Sweeping settles already-verified entries and works without an anchor.
	if v, err := a.verifier(); err == nil {
		opts = append(opts, claim.WithVerifier(v))
	}
	return claim.NewEngine(st, lc, opts...), nil
}

// render writes v as indented JSON with -o json, and calls text otherwise.
func (a *app) render(w io.Writer, v any, text func(io.Writer) error) error {
	if a.flags.Output == OutputJSON {
		return encodeJSONIndented(w, v)
	}
	return text(w)
}
