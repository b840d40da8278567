package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/runner/internal/performance/output"
)

func newValidateCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Check a config file without sending any requests",
		Long: `Validate loads a config file, interpolates environment variables and
resolves every step exactly as a run would, then prints the resolved
scenario. It exits with code 2 when the config cannot be run.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected exactly one config file, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := loadRunConfig(cmd, args[0], nil)
			if err != nil {
				return err
			}

			p := output.NewPalette(output.ColorEnabled(cmd.OutOrStdout(), noColor))
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "%s %s is valid\n", p.Pass.Sprint("✓"), args[0])
			fmt.Fprintf(w, "  Name:       %s\n", rc.Name)
			fmt.Fprintf(w, "  VUs:        %d\n", rc.VUs)
			if rc.Iterations > 0 {
				fmt.Fprintf(w, "  Iterations: %d\n", rc.Iterations)
			}
			if rc.Duration > 0 {
				fmt.Fprintf(w, "  Duration:   %s\n", rc.Duration)
			}
			fmt.Fprintf(w, "  Errors:     %s\n", rc.NetworkErrors)
			fmt.Fprintln(w, "  Steps:")
			for i, step := range rc.Steps {
				fmt.Fprintf(w, "    %d. %-7s %s %s\n", i+1, step.Method, step.URL, p.Dim.Sprintf("(%s)", step.Name))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}
