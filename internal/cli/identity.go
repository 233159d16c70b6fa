package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/certificate"
	"github.com/mrz1836/paytoken/internal/domain"
	"github.com/mrz1836/paytoken/internal/errors"
)

// identityView is the rendered form of an identity. The private key is never shown.
type identityView struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
	Certified bool   `json:"certified"`
	// Trusted is nil when no trust anchor is configured.
	Trusted *bool `json:"trusted,omitempty"`
}

func newIdentityView(id *domain.Identity) identityView {
	return identityView{
		UID:       id.UID,
		Name:      id.Name,
		PublicKey: id.PublicKey,
		Certified: id.Certificate != "",
	}
}

// AddIdentityCommand adds 'identity init' and 'identity show'.
func AddIdentityCommand(root *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the member identity on this device",
	}
	cmd.AddCommand(newIdentityInitCmd(a), newIdentityShowCmd(a))
	root.AddCommand(cmd)
}

func newIdentityInitCmd(a *app) *cobra.Command {
	var (
		name  string
		retry bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a keypair and request a certificate",
		Long: `Generate a secp256k1 keypair, store it on this device and ask the trust
authority to certify it.

If the certificate request fails, the key stays stored but uncertified.
Re-run with --retry to request the certificate again for the stored key.

Examples:
  paytoken identity init --uid alice --name "Alice"
  paytoken identity init --uid alice --retry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			uid, err := a.uid()
			if err != nil {
				return err
			}
			p, err := a.provisioner(ctx)
			if err != nil {
				return err
			}

			var id *domain.Identity
			if retry {
				id, err = p.RetryCertificate(ctx, uid)
			} else {
				if a.cfg.User.Name == "" {
					return errors.NewExitCode2Error(fmt.Errorf("%w: --name is required", errors.ErrEmptyValue))
				}
				id, err = p.Provision(ctx, uid, a.cfg.User.Name)
			}
			if err != nil {
				return err
			}

			view := newIdentityView(id)
			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				s := newStyles()
				_, _ = fmt.Fprintln(w, s.success.Render("✓ identity certified"))
				s.field(w, "uid", view.UID)
				s.field(w, "name", view.Name)
				s.field(w, "public key", view.PublicKey)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name bound into the certificate (overrides user.name)")
	cmd.Flags().BoolVar(&retry, "retry", false, "re-request the certificate for the stored key")
	return cmd
}

func newIdentityShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity(cmd.Context())
			if err != nil {
				return err
			}

			view := newIdentityView(id)
			if pub, err := a.trustAnchor(); err == nil && view.Certified {
				_, verr := certificate.Validate(id.Certificate, pub)
				trusted := verr == nil
				view.Trusted = &trusted
			}

			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				s := newStyles()
				s.field(w, "uid", view.UID)
				s.field(w, "name", view.Name)
				s.field(w, "public key", view.PublicKey)
				certified := s.failed.Render("no (run 'paytoken identity init --retry')")
				if view.Certified {
					certified = s.success.Render("yes")
				}
				s.field(w, "certified", certified)
				if view.Trusted != nil {
					trusted := s.failed.Render("no")
					if *view.Trusted {
						trusted = s.success.Render("yes")
					}
					s.field(w, "trusted by anchor", trusted)
				}
				return nil
			})
		},
	}
}
