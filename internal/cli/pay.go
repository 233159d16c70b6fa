package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/config"
	"github.com/mrz1836/paytoken/internal/errors"
	"github.com/mrz1836/paytoken/internal/payment"
	"github.com/mrz1836/paytoken/internal/payreq"
)

// PayFlags holds flags for the pay command.
type PayFlags struct {
	Memo    string
	Request string
	Tip     int64
	Bearer  bool
	URI     bool
}

// payView is the rendered result of a payment authorization.
type payView struct {
	Token     string        `json:"token"`
	URI       string        `json:"uri,omitempty"`
	Nonce     string        `json:"nonce"`
	Recipient string        `json:"recipient,omitempty"`
	Amount    int64         `json:"amount"`
	Quote     *payreq.Quote `json:"quote,omitempty"`
}

// AddPayCommand adds 'pay'.
func AddPayCommand(root *cobra.Command, a *app) {
	flags := &PayFlags{}
	cmd := &cobra.Command{
		Use:   "pay [recipient] [amount]",
		Short: "Sign a payment token offline",
		Long: `Sign a payment token for the acting user. No connectivity is needed:
the token is checked against the locally known balance, and the known
balance is debited immediately. When the ledger is reachable the payment
is also submitted in the background.

Pay a recipient:
  paytoken pay bob 25 --memo lunch

Pay a bearer token anyone can claim:
  paytoken pay --bearer 10

Pay a payment request (the amount is only needed for donation ranges):
  paytoken pay --request 'paytoken://request?pay=bob&name=Bob&amount=25'
  paytoken pay --request 'paytoken://request?pay=bob&name=Bob&min=5&max=50&tips=true' 20 --tip 15`,
		Args: func(_ *cobra.Command, args []string) error {
			switch {
			case flags.Request != "" && len(args) > 1:
				return errors.NewExitCode2Error(fmt.Errorf("%w: with --request, pass at most an amount", errors.ErrInvalidPaymentRequest))
			case flags.Request == "" && flags.Bearer && len(args) != 1:
				return errors.NewExitCode2Error(fmt.Errorf("%w: with --bearer, pass only an amount", errors.ErrEmptyValue))
			case flags.Request == "" && !flags.Bearer && len(args) != 2:
				return errors.NewExitCode2Error(fmt.Errorf("%w: recipient and amount are required", errors.ErrEmptyValue))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := runPay(cmd.Context(), a, flags, args)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				s := newStyles()
				if view.Quote != nil && view.Quote.Tip > 0 {
					s.field(w, "amount", fmt.Sprintf("%d (%d + %d tip)", view.Amount, view.Quote.Base, view.Quote.Tip))
				} else {
					s.field(w, "amount", view.Amount)
				}
				s.field(w, "recipient", orDash(view.Recipient))
				s.field(w, "nonce", view.Nonce)
				_, _ = fmt.Fprintln(w)
				if view.URI != "" {
					_, _ = fmt.Fprintln(w, view.URI)
				} else {
					_, _ = fmt.Fprintln(w, view.Token)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.Memo, "memo", "", "memo carried by the token")
	cmd.Flags().StringVar(&flags.Request, "request", "", "pay a payment-request URI")
	cmd.Flags().Int64Var(&flags.Tip, "tip", 0, "tip percentage on top of the base amount (requests only)")
	cmd.Flags().BoolVar(&flags.Bearer, "bearer", false, "create a token without a recipient")
	cmd.Flags().BoolVar(&flags.URI, "uri", false, "print the token as a claim URI")
	cmd.MarkFlagsMutuallyExclusive("request", "bearer")
	root.AddCommand(cmd)
}

func runPay(ctx context.Context, a *app, flags *PayFlags, args []string) (*payView, error) {
	id, err := a.identity(ctx)
	if err != nil {
		return nil, err
	}
	authorizer, err := a.authorizer(ctx)
	if err != nil {
		return nil, err
	}
	// The background ledger sync must finish before the process exits.
	defer authorizer.Wait()

	req, quote, err := buildPaymentRequest(ctx, a, id.UID, flags, args)
	if err != nil {
		return nil, err
	}

	auth, err := authorizer.Authorize(ctx, id, req)
	if err != nil {
		return nil, err
	}

	view := &payView{
		Token:     auth.Encoded,
		Nonce:     auth.Token.Nonce,
		Recipient: auth.Token.RecipientID,
		Amount:    auth.Token.Amount,
		Quote:     quote,
	}
	if flags.URI {
		uri, err := payment.TokenURI(config.DefaultTokenBase, auth.Encoded)
		if err != nil {
			return nil, err
		}
		view.URI = uri
	}
	return view, nil
}

// buildPaymentRequest turns arguments and flags into an authorization request.
// For payment requests the amount is priced against the known balance.
func buildPaymentRequest(ctx context.Context, a *app, uid string, flags *PayFlags, args []string) (payment.Request, *payreq.Quote, error) {
	if flags.Request == "" {
		if flags.Tip != 0 {
			return payment.Request{}, nil, errors.NewExitCode2Error(fmt.Errorf("%w: --tip applies only with --request", errors.ErrInvalidPaymentRequest))
		}
		recipient, amountArg := "", args[0]
		if !flags.Bearer {
			recipient, amountArg = args[0], args[1]
		}
		amount, err := parseAmount(amountArg)
		if err != nil {
			return payment.Request{}, nil, err
		}
		return payment.Request{RecipientID: recipient, Amount: amount, Memo: flags.Memo}, nil, nil
	}

	target, err := payreq.Decode(flags.Request)
	if err != nil {
		return payment.Request{}, nil, err
	}

	var chosen int64
	if len(args) == 1 {
		if chosen, err = parseAmount(args[0]); err != nil {
			return payment.Request{}, nil, err
		}
	} else if target.Amount == nil {
		return payment.Request{}, nil, errors.NewExitCode2Error(fmt.Errorf("%w: this request has no fixed amount; pass one", errors.ErrInvalidPaymentRequest))
	}

	balances, err := a.balances(ctx)
	if err != nil {
		return payment.Request{}, nil, err
	}
	known, err := balances.Known(ctx, uid)
	if err != nil {
		return payment.Request{}, nil, err
	}

	quote, err := payreq.NewQuote(target, known, chosen, flags.Tip)
	if err != nil {
		return payment.Request{}, nil, err
	}

	memo := flags.Memo
	if memo == "" {
		memo = target.Memo
	}
	bounds := quote.Bounds
	return payment.Request{
		RecipientID: target.UID,
		Amount:      quote.Total,
		Memo:        memo,
		Bounds:      &bounds,
	}, quote, nil
}

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NewExitCode2Error(fmt.Errorf("amount %q is not a whole number: %w", s, err))
	}
	return amount, nil
}
