package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/runner/internal/performance"
)

var version = "0.1.0"

// Exit codes returned by Execute.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// errThresholdsFailed marks a run that completed but did not pass its
// thresholds. The summary already reports the failure.
var errThresholdsFailed = errors.New("thresholds failed")

// errInterrupted marks a run stopped by a signal before its budget ran out.
var errInterrupted = errors.New("run interrupted")

// usageError is a malformed command line. It exits like a config error.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// NewRootCmd builds the command tree. The root command runs a config file;
// subcommands inspect configs and stored history.
func NewRootCmd() *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:     "runner <config-file>",
		Short:   "Drive concurrent virtual users through an HTTP scenario",
		Version: version,
		Long: `Runner executes a scenario of HTTP requests with a fixed number of
virtual users, bounded by a shared iteration budget, a duration, or both.

  runner gateway.yaml
  runner gateway.yaml --vus 50 --iterations 50
  runner gateway.yaml --duration 2m --out summary.json --history runs.db

Exit codes: 0 completed, 1 thresholds failed or run interrupted,
2 invalid configuration.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected exactly one config file, got %d arguments", len(args))}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0], opts)
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	opts.bind(root)
	root.AddCommand(newValidateCmd())
	root.AddCommand(newHistoryCmd())

	return root
}

// Execute runs the command line from os.Args and returns the process exit
// code.
func Execute() int {
	return ExecuteArgs(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs the command tree with explicit arguments and streams.
func ExecuteArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil && !errors.Is(err, errThresholdsFailed) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		}
	}
	return code
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return ExitOK
	case performance.IsConfigError(err), errors.As(err, &ue):
		return ExitConfig
	default:
		return ExitFailed
	}
}
