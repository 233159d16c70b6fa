package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/paytoken/internal/config"
)

// AddConfigCommand adds 'config show'.
func AddConfigCommand(root *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective configuration after merging, in increasing precedence:
  - built-in defaults
  - ~/.paytoken/config.yaml (or --config-dir)
  - .paytoken/config.yaml in the working directory
  - PAYTOKEN_* environment variables (and .env)
  - command-line flags

Credentials embedded in URLs are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			if a.flags.Output == OutputJSON {
				var doc map[string]any
				if err := yaml.Unmarshal(data, &doc); err != nil {
					return err
				}
				return encodeJSONIndented(out, doc)
			}
			s := newStyles()
			_, _ = fmt.Fprintln(out, s.dim.Render("# "+config.ConfigFileName+" in "+a.cfg.HomeDir()))
			_, err = io.WriteString(out, string(data))
			return err
		},
	})
	root.AddCommand(cmd)
}
