package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/paytoken/internal/claim"
	"github.com/mrz1836/paytoken/internal/events"
	"github.com/mrz1836/paytoken/internal/signal"
)

// ExitInterrupted is the exit code after a second interrupt forces shutdown.
const ExitInterrupted = 130

// interruptible returns a signal handler whose context ends on the first
// SIGINT or SIGTERM. A second signal exits immediately.
func interruptible(ctx context.Context) *signal.Handler {
	return signal.NewHandler(ctx, signal.WithForce(func() { os.Exit(ExitInterrupted) }))
}

// AddSweepCommand adds 'sweep'.
func AddSweepCommand(root *cobra.Command, a *app) {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Settle queued claims with the ledger",
		Long: `Attempt every pending claim once. Entries the ledger rejects become
failed and are not retried. If the ledger stops answering mid-sweep, the
remaining entries stay pending.

With --watch, keep running: sweep every claims.sweep_interval and
immediately whenever the ledger becomes reachable again. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			uid, err := a.uid()
			if err != nil {
				return err
			}
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			if watch {
				return a.watchSweeps(ctx, cmd.OutOrStdout(), engine, uid)
			}

			report, err := engine.Sweep(ctx, uid)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				writeReport(w, newStyles(), report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep sweeping in the background until interrupted")
	root.AddCommand(cmd)
}

func writeReport(w io.Writer, s *styles, r claim.SweepReport) {
	if r.Offline {
		_, _ = fmt.Fprintln(w, s.pending.Render("ledger unreachable; nothing attempted"))
		return
	}
	_, _ = fmt.Fprintf(w, "%s settled, %s failed, %s deferred\n",
		s.success.Render(fmt.Sprint(r.Settled)),
		s.failed.Render(fmt.Sprint(r.Failed)),
		s.pending.Render(fmt.Sprint(r.Deferred)))
}

// watchSweeps runs the sweeper and the connectivity watcher until
// interrupted, printing claim events as they happen.
func (a *app) watchSweeps(ctx context.Context, w io.Writer, engine *claim.Engine, uid string) error {
	h := interruptible(ctx)
	defer h.Stop()

	g, gctx := errgroup.WithContext(h.Context())

	feed, err := a.bus.Subscribe(gctx)
	if err != nil {
		return err
	}
	g.Go(func() error {
		s := newStyles()
		for e := range feed {
			if e.UID != uid {
				continue
			}
			if err := a.render(w, e, func(w io.Writer) error {
				writeEvent(w, s, e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})

	sweeper := claim.NewSweeper(engine, uid, a.cfg.Claims.SweepInterval)
	sweeper.Start(gctx)
	sweeper.NotifyOnline()
	a.logger.Info().
		Str("uid", uid).
		Dur("interval", a.cfg.Claims.SweepInterval).
		Msg("watching claim queue")

	g.Go(func() error {
		sweeper.WatchConnectivity(gctx, a.ledgerClient(), a.cfg.Claims.ConnectivityInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if sig := h.Signal(); sig != nil {
		a.logger.Info().Str("signal", sig.String()).Msg("stopped watching")
	}
	return nil
}

func writeEvent(w io.Writer, s *styles, e events.Event) {
	at := formatMillis(e.AtMs)
	switch e.Type {
	case events.ClaimSettled:
		_, _ = fmt.Fprintf(w, "%s %s %d (claim %s)\n", s.dim.Render(at), s.success.Render("settled"), e.Amount, e.ClaimID)
	case events.ClaimFailed:
		_, _ = fmt.Fprintf(w, "%s %s claim %s: %s\n", s.dim.Render(at), s.failed.Render("failed"), e.ClaimID, e.Error)
	case events.BalanceRefreshed:
		_, _ = fmt.Fprintf(w, "%s %s %d\n", s.dim.Render(at), s.label.Render("balance"), e.Balance)
	default:
		_, _ = fmt.Fprintf(w, "%s %s\n", s.dim.Render(at), s.dim.Render(string(e.Type)))
	}
}
