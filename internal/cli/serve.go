package cli

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/paytoken/internal/certificate"
	"github.com/mrz1836/paytoken/internal/constants"
	"github.com/mrz1836/paytoken/internal/crypto/anchor"
	"github.com/mrz1836/paytoken/internal/devserver"
	"github.com/mrz1836/paytoken/internal/ledger"
	"github.com/mrz1836/paytoken/internal/verify"
)

// AddServeCommand adds 'serve'.
func AddServeCommand(root *cobra.Command, a *app) {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference trust authority and ledger",
		Long: `Run a trust authority and ledger over HTTP for local use.

The anchor key is loaded from server.key_dir, or generated on first start.
Accounts and transactions are kept in the SQLite database at server.db_path.
Every certified member gets an account with server.opening_balance.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := a.component("devserver")

			km := anchor.NewKeyManager(a.cfg.KeyDir())
			if err := km.Load(ctx); err != nil {
				return err
			}
			priv, err := km.PrivateKey()
			if err != nil {
				return err
			}
			pub, ok := priv.Public().(ed25519.PublicKey)
			if !ok {
				return fmt.Errorf("%w: anchor key has no ed25519 public key", anchor.ErrKeyNotLoaded)
			}
			signer, err := km.NewSigner()
			if err != nil {
				return err
			}

			db, err := ledger.OpenSQLite(a.cfg.LedgerDBPath(), a.component("sqlite"))
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				a.closers = append(a.closers, sqlDB.Close)
			}
			book := ledger.NewSQL(db, verify.New(pub), ledger.WithLogger(a.component("ledger")))

			issuer := certificate.NewIssuer(priv, certificate.WithIssuerName(constants.DefaultIssuer))
			srv := devserver.New(issuer, pub, book,
				devserver.WithOpeningBalance(a.cfg.Server.OpeningBalance),
				devserver.WithLogger(logger),
			)

			logger.Info().
				Str("anchor", signer.PublicKeyHex()).
				Str("db", a.cfg.LedgerDBPath()).
				Msg("reference server ready")

			h := interruptible(ctx)
			defer h.Stop()

			g, gctx := errgroup.WithContext(h.Context())
			g.Go(func() error {
				return srv.ListenAndServe(gctx, a.cfg.Server.Addr)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	root.AddCommand(cmd)
}
