// Package cli provides the command-line interface for paytoken.
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// newRootCmd creates the root command. All subcommands share a.
func newRootCmd(a *app, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paytoken",
		Short: "Offline-capable signed payment tokens",
		Long: `paytoken signs payments on one device and verifies them on another
without either side being online. Tokens are settled against the ledger
when connectivity allows.

Features:
  • Certified member identities bound by a trust authority
  • Offline authorization and verification of payment tokens
  • A durable claim queue swept against the ledger
  • Shareable payment-request links with tips and donation ranges
  • A reference trust authority and ledger server`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !IsValidOutputFormat(a.flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", errors.ErrInvalidOutputFormat, a.flags.Output, ValidOutputFormats())
			}
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, a.flags)

	AddIdentityCommand(cmd, a)
	AddAnchorCommand(cmd, a)
	AddBalanceCommand(cmd, a)
	AddPayCommand(cmd, a)
	AddVerifyCommand(cmd, a)
	AddClaimCommands(cmd, a)
	AddSweepCommand(cmd, a)
	AddHistoryCommand(cmd, a)
	AddRequestCommand(cmd, a)
	AddServeCommand(cmd, a)
	AddConfigCommand(cmd, a)

	return cmd
}

// formatVersion creates the version string from build info, falling back to
// the module version embedded by the Go toolchain.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
// Errors are returned unprinted; see PrintError.
func Execute(ctx context.Context, info BuildInfo) error {
	a := newApp(&GlobalFlags{})
	defer a.Close()

	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(a, info)
	return cmd.ExecuteContext(ctx)
}

// PrintError writes the user-facing message for err and, when there is one,
// the suggested action.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	msg, action := errors.Actionable(err)
	_, _ = fmt.Fprintf(w, "Error: %s\n", msg)
	if detail := err.Error(); detail != msg {
		_, _ = fmt.Fprintf(w, "  %s\n", detail)
	}
	if action != "" {
		_, _ = fmt.Fprintf(w, "  → %s\n", action)
	}
}
