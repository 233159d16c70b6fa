package cli

import (
	stderrors "errors"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paytoken/internal/errors"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitError        = 1
	ExitInvalidInput = 2 // bad flags, arguments, links or config
)

// Values accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	// Output is text or json.
	Output string
	// Verbose logs at debug level.
	Verbose bool
	// Quiet logs warnings and errors only.
	Quiet bool
	// ConfigDir replaces ~/.paytoken as the config and data directory.
	ConfigDir string
	// UID selects the acting user, overriding user.uid.
	UID string
}

// configFlagBindings maps config keys to the flags that override them.
// Only flags present on the running command and set by the user apply.
func configFlagBindings() map[string]string {
	return map[string]string{
		"user.uid":    "uid",
		"user.name":   "name",
		"server.addr": "addr",
	}
}

// AddGlobalFlags registers GlobalFlags as persistent flags on cmd.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputText, "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVar(&flags.ConfigDir, "config-dir", "", "config and data directory (default ~/.paytoken)")
	cmd.PersistentFlags().StringVar(&flags.UID, "uid", "", "acting user id (overrides user.uid)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// ValidOutputFormats lists the values accepted by --output.
func ValidOutputFormats() []string {
	return []string{OutputText, OutputJSON}
}

// IsValidOutputFormat reports whether format is accepted by --output.
func IsValidOutputFormat(format string) bool {
	return slices.Contains(ValidOutputFormats(), format)
}

// ExitCodeForError maps err to a process exit code. Input mistakes the user
// can fix by changing the command line exit with ExitInvalidInput.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.IsExitCode2Error(err) {
		return ExitInvalidInput
	}

	if stderrors.Is(err, errors.ErrInvalidOutputFormat) ||
		stderrors.Is(err, errors.ErrInvalidPaymentRequest) ||
		stderrors.Is(err, errors.ErrConfigInvalid) {
		return ExitInvalidInput
	}

	if isCobraUsageError(err.Error()) {
		return ExitInvalidInput
	}

	return ExitError
}

// cobraUsagePatterns match the messages cobra and pflag return for flag
// and argument validation failures.
var cobraUsagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"flag needs an argument",
	"invalid argument",
	"if any flags in the group",
	"required flag",
	"unknown command",
	"accepts ",
	"requires at least",
}

func isCobraUsageError(msg string) bool {
	return slices.ContainsFunc(cobraUsagePatterns, func(p string) bool {
		return strings.Contains(msg, p)
	})
}
