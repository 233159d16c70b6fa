package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/claim"
	"github.com/mrz1836/paytoken/internal/domain"
)

// AddClaimCommands adds 'claim' and 'claims list'.
func AddClaimCommands(root *cobra.Command, a *app) {
	root.AddCommand(newClaimCmd(a), newClaimsCmd(a))
}

func newClaimCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "claim <token|uri>",
		Short: "Verify a token and settle or queue it",
		Long: `Verify a payment token offline, then settle it with the ledger. When the
ledger is unreachable, or with --offline, the claim is queued and settled
by the next 'paytoken sweep'.

A ledger rejection (already settled, insufficient funds, unknown party) is
reported immediately and nothing is queued.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uid, err := a.uid()
			if err != nil {
				return err
			}
			// Surface where the anchor was expected rather than a bare error.
			if _, err := a.trustAnchor(); err != nil {
				return err
			}
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}

			online := !offline && a.ledgerClient().Online(ctx)
			outcome, err := engine.ClaimToken(ctx, uid, args[0], online)
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), outcome, func(w io.Writer) error {
				writeOutcome(w, newStyles(), outcome)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "queue the claim without contacting the ledger")
	return cmd
}

func writeOutcome(w io.Writer, s *styles, outcome *claim.Outcome) {
	switch {
	case outcome.Settlement != nil && outcome.Settlement.Replayed:
		_, _ = fmt.Fprintln(w, s.pending.Render("already settled to you; nothing changed"))
		s.field(w, "transaction", outcome.Settlement.Transaction.ID)
	case outcome.Settlement != nil:
		tx := outcome.Settlement.Transaction
		_, _ = fmt.Fprintln(w, s.success.Render(fmt.Sprintf("✓ settled %d from %s", tx.Amount, tx.FromID)))
		s.field(w, "transaction", tx.ID)
	case outcome.Queued != nil:
		q := outcome.Queued
		_, _ = fmt.Fprintln(w, s.pending.Render(fmt.Sprintf("queued %d from %s; run 'paytoken sweep' when online", q.Amount, q.SenderID)))
		s.field(w, "claim", q.ID)
	}
}

func newClaimsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Inspect the claim queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued claims and their status",
		Args:  cobra.NoArgs,
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
			entries, err := engine.Pending(ctx, uid)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []domain.PendingClaim{}
			}

			return a.render(cmd.OutOrStdout(), entries, func(w io.Writer) error {
				writeClaims(w, newStyles(), entries)
				return nil
			})
		},
	})
	return cmd
}

func writeClaims(w io.Writer, s *styles, entries []domain.PendingClaim) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, s.dim.Render("no queued claims"))
		return
	}
	_, _ = fmt.Fprintln(w, s.header.Render(fmt.Sprintf("%-36s  %-12s  %8s  %-19s  %-7s  %s", "ID", "FROM", "AMOUNT", "QUEUED", "STATUS", "DETAIL")))
	for _, c := range entries {
		detail := c.TransactionID
		if c.Status == domain.ClaimFailed {
			detail = c.Error
		}
		// Padding goes outside the styled text.
		status := s.status(c.Status) + spaces(7-len(c.Status.String()))
		_, _ = fmt.Fprintf(w, "%-36s  %-12s  %8d  %-19s  %s  %s\n",
			c.ID, c.SenderID, c.Amount, formatMillis(c.EnqueuedAtMs), status, s.dim.Render(orDash(detail)))
	}
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%*s", n, "")
}
