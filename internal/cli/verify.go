package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/domain"
)

// verifiedView is the rendered form of a verified intent.
type verifiedView struct {
	Valid       bool   `json:"valid"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	RecipientID string `json:"recipient_id,omitempty"`
	Amount      int64  `json:"amount"`
	Memo        string `json:"memo,omitempty"`
	Nonce       string `json:"nonce"`
	TimestampMs int64  `json:"timestamp"`
	PublicKey   string `json:"public_key"`
}

func newVerifiedView(v *domain.VerifiedIntent) verifiedView {
	return verifiedView{
		Valid:       true,
		SenderID:    v.Intent.SenderID,
		SenderName:  v.HolderName,
		RecipientID: v.Intent.RecipientID,
		Amount:      v.Intent.Amount,
		Memo:        v.Intent.Memo,
		Nonce:       v.Intent.Nonce,
		TimestampMs: v.Intent.TimestampMs,
		PublicKey:   v.PublicKey,
	}
}

func (v verifiedView) write(w io.Writer, s *styles) {
	s.field(w, "from", fmt.Sprintf("%s (%s)", v.SenderName, v.SenderID))
	s.field(w, "to", orDash(v.RecipientID))
	s.field(w, "amount", v.Amount)
	s.field(w, "memo", orDash(v.Memo))
	s.field(w, "signed at", formatMillis(v.TimestampMs))
	s.field(w, "nonce", v.Nonce)
}

// AddVerifyCommand adds 'verify'.
func AddVerifyCommand(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:   "verify <token|uri>",
		Short: "Verify a payment token offline",
		Long: `Verify a payment token against the trust anchor without contacting
anyone. A valid token proves who signed it and for how much; it does not
prove the sender still has the funds. Settle it with 'paytoken claim'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.verifier()
			if err != nil {
				return err
			}
			verified, err := v.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := newVerifiedView(verified)
			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				s := newStyles()
				_, _ = fmt.Fprintln(w, s.success.Render("✓ valid payment token"))
				view.write(w, s)
				return nil
			})
		},
	})
}
