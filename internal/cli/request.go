package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/domain"
	"github.com/mrz1836/paytoken/internal/payreq"
)

// AddRequestCommand adds 'request encode' and 'request decode'.
func AddRequestCommand(root *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Create and read payment-request links",
	}
	cmd.AddCommand(newRequestEncodeCmd(a), newRequestDecodeCmd(a))
	root.AddCommand(cmd)
}

func newRequestEncodeCmd(a *app) *cobra.Command {
	var (
		name    string
		image   string
		memo    string
		amount  int64
		minimum int64
		maximum int64
		tips    bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a payment-request URI for the acting user",
		Long: `Build a shareable link asking to be paid. Pass --amount for a fixed
amount, or --min and/or --max for a donation range.

Examples:
  paytoken request encode --name "Bob's Coffee" --amount 4
  paytoken request encode --name "Bob" --min 1 --max 100 --tips`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uid, err := a.uid()
			if err != nil {
				return err
			}
			target := &domain.PaymentTarget{
				UID:       uid,
				Name:      a.cfg.User.Name,
				Image:     image,
				AllowTips: tips,
				Memo:      memo,
			}
			if cmd.Flags().Changed("amount") {
				target.Amount = &amount
			}
			if cmd.Flags().Changed("min") {
				target.Min = &minimum
			}
			if cmd.Flags().Changed("max") {
				target.Max = &maximum
			}

			uri, err := payreq.Encode(a.cfg.PayReq.BaseURL, target)
			if err != nil {
				return err
			}

			out := struct {
				URI    string                `json:"uri"`
				Target *domain.PaymentTarget `json:"target"`
			}{uri, target}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, _ = fmt.Fprintln(w, uri)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (overrides user.name)")
	cmd.Flags().StringVar(&image, "img", "", "image URL shown to the payer")
	cmd.Flags().StringVar(&memo, "memo", "", "memo suggested to the payer")
	cmd.Flags().Int64Var(&amount, "amount", 0, "fixed amount")
	cmd.Flags().Int64Var(&minimum, "min", 0, "minimum amount of a donation range")
	cmd.Flags().Int64Var(&maximum, "max", 0, "maximum amount of a donation range")
	cmd.Flags().BoolVar(&tips, "tips", false, "allow the payer to add a tip")
	cmd.MarkFlagsMutuallyExclusive("amount", "min")
	cmd.MarkFlagsMutuallyExclusive("amount", "max")
	return cmd
}

// requestView is a decoded request, priced for the acting user when possible.
type requestView struct {
	Target *domain.PaymentTarget `json:"target"`
	Bounds *domain.AmountBounds  `json:"bounds,omitempty"`
	Quote  *payreq.Quote         `json:"quote,omitempty"`
}

func newRequestDecodeCmd(a *app) *cobra.Command {
	var (
		tip    int64
		amount int64
	)
	cmd := &cobra.Command{
		Use:   "decode <uri>",
		Short: "Show what a payment-request URI asks for",
		Long: `Decode a payment-request link. When the acting user is known, the
payable range is clamped to the known balance, and --amount/--tip show the
resulting total.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, err := payreq.Decode(args[0])
			if err != nil {
				return err
			}
			view := requestView{Target: target}

			if uid, uidErr := a.uid(); uidErr == nil {
				balances, err := a.balances(ctx)
				if err != nil {
					return err
				}
				known, err := balances.Known(ctx, uid)
				if err != nil {
					return err
				}
				b := payreq.Bounds(target, known)
				view.Bounds = &b
				if target.Amount != nil || cmd.Flags().Changed("amount") || tip != 0 {
					if view.Quote, err = payreq.NewQuote(target, known, amount, tip); err != nil {
						return err
					}
				}
			}

			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				writeRequest(w, newStyles(), view)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&tip, "tip", 0, "tip percentage to price in")
	cmd.Flags().Int64Var(&amount, "amount", 0, "base amount to price for a donation range")
	return cmd
}

func writeRequest(w io.Writer, s *styles, v requestView) {
	t := v.Target
	s.field(w, "pay", fmt.Sprintf("%s (%s)", t.Name, t.UID))
	switch {
	case t.Amount != nil:
		s.field(w, "amount", *t.Amount)
	case t.IsRange():
		s.field(w, "range", fmt.Sprintf("%s to %s", optional(t.Min), optional(t.Max)))
	default:
		s.field(w, "amount", "payer chooses")
	}
	s.field(w, "tips", t.AllowTips)
	if t.Memo != "" {
		s.field(w, "memo", t.Memo)
	}
	if t.Image != "" {
		s.field(w, "image", t.Image)
	}
	if v.Bounds != nil {
		if v.Bounds.Empty() {
			s.field(w, "payable", s.failed.Render("nothing (known balance too low)"))
		} else {
			s.field(w, "payable", fmt.Sprintf("%d to %d", v.Bounds.Min, v.Bounds.Max))
		}
	}
	if q := v.Quote; q != nil {
		s.field(w, "total", fmt.Sprintf("%d (%d + %d tip)", q.Total, q.Base, q.Tip))
	}
}

func optional(v *int64) string {
	if v == nil {
		return "any"
	}
	return fmt.Sprint(*v)
}
