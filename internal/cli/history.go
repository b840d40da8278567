package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/runner/internal/performance/output"
	"github.com/wesleyorama2/runner/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit   int
		show    string
		asJSON  bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "history <history-file>",
		Short: "List runs stored with --history",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected exactly one history file, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			// Opening creates the file, which is not wanted for a typo.
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("history file: %w", err)
			}

			store, err := storage.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()

			if show != "" {
				record, err := store.Get(show)
				if err != nil {
					return err
				}
				if asJSON {
					return output.Encode(w, output.FormatJSON, record.Summary)
				}
				console := output.NewConsole(output.ConsoleConfig{Writer: w, NoColor: noColor})
				console.PrintSummary(record.Summary)
				return nil
			}

			records, err := store.List(limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}

			p := output.NewPalette(output.ColorEnabled(w, noColor))
			fmt.Fprintln(w, p.Dim.Sprintf("%-36s  %-19s  %-24s %9s %8s %10s  %s",
				"RUN ID", "STARTED", "NAME", "REQUESTS", "FAILED", "P95", "RESULT"))
			for _, r := range records {
				result := p.Pass.Sprint("PASSED")
				if !r.Passed {
					result = p.Fail.Sprint("FAILED")
				}
				fmt.Fprintf(w, "%-36s  %-19s  %-24s %9d %7.2f%% %10s  %s\n",
					r.RunID,
					r.StartTime.Local().Format("2006-01-02 15:04:05"),
					truncate(r.Name, 24),
					r.TotalRequests,
					r.FailRate*100,
					r.P95.Round(10*time.Microsecond).String(),
					result)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many runs, newest first (0 for all)")
	cmd.Flags().StringVar(&show, "show", "", "Print the full summary of one run by ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
