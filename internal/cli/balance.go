package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/domain"
)

// AddBalanceCommand adds 'balance'.
func AddBalanceCommand(root *cobra.Command, a *app) {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the known balance",
		Long: `Show the locally known balance: the last ledger balance minus payments
authorized on this device since. Use --refresh to fetch the authoritative
balance from the ledger first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			uid, err := a.uid()
			if err != nil {
				return err
			}
			view, err := a.balances(ctx)
			if err != nil {
				return err
			}

			var amount int64
			if refresh {
				amount, err = view.Refresh(ctx, uid)
			} else {
				amount, err = view.Known(ctx, uid)
			}
			if err != nil {
				return err
			}

			out := struct {
				UID       string `json:"uid"`
				Balance   int64  `json:"balance"`
				Refreshed bool   `json:"refreshed"`
			}{uid, amount, refresh}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				s := newStyles()
				s.field(w, "balance", amount)
				if !refresh {
					_, _ = fmt.Fprintln(w, s.dim.Render("(known locally; use --refresh for the ledger balance)"))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the balance from the ledger")
	root.AddCommand(cmd)
}

// AddHistoryCommand adds 'history'.
func AddHistoryCommand(root *cobra.Command, a *app) {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List ledger transactions for the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			txs, err := a.ledgerClient().History(cmd.Context(), uid, limit)
			if err != nil {
				return err
			}
			if txs == nil {
				txs = []domain.LedgerTransaction{}
			}

			return a.render(cmd.OutOrStdout(), txs, func(w io.Writer) error {
				s := newStyles()
				if len(txs) == 0 {
					_, _ = fmt.Fprintln(w, s.dim.Render("no transactions"))
					return nil
				}
				_, _ = fmt.Fprintln(w, s.header.Render(fmt.Sprintf("%-19s  %-8s  %-12s  %-12s  %8s  %s", "TIME", "TYPE", "FROM", "TO", "AMOUNT", "VERIFIED")))
				for _, tx := range txs {
					verified := s.pending.Render("no")
					if tx.IsVerified {
						verified = s.success.Render("yes")
					}
					amount := fmt.Sprintf("%8d", tx.Amount)
					if tx.FromID == uid {
						amount = fmt.Sprintf("%8d", -tx.Amount)
					}
					_, _ = fmt.Fprintf(w, "%-19s  %-8s  %-12s  %-12s  %s  %s\n",
						formatMillis(tx.TimestampMs), tx.Type, tx.FromID, tx.ToID, amount, verified)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of transactions")
	root.AddCommand(cmd)
}
