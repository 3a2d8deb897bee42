package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/harness"
	"github.com/roach88/convoscript/internal/scenario"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // re-record instead of verifying
	Filter   string // scenario name glob
	Parallel int
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios-dir]",
		Short: "Verify every scenario in a directory",
		Long: `Load every *.yaml scenario in a directory and verify them in parallel.
The directory defaults to scenarios_dir from the config.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  convoscript test ./scenarios
  convoscript test ./scenarios --filter "order_*"
  convoscript test ./scenarios --update
  convoscript test --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.config().ScenariosDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runTests(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "re-record golden transcripts")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 0, "scenarios run at once (default from config)")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read scenarios directory", err)
	}

	scenarios, err := scenario.LoadDir(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	mode := harness.ModeVerify
	if opts.Update {
		mode = harness.ModeRecord
	}

	b := newJobBuilder(opts.RootOptions)
	jobs := make([]harness.Job, 0, len(scenarios))
	for _, s := range scenarios {
		job, err := b.build(s, mode)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load form", err)
		}
		jobs = append(jobs, job)
	}
	opts.logger().Debug("scenarios loaded", "dir", dir, "count", len(jobs), "mode", mode.String())

	return runJobs(cmd.Context(), opts.RootOptions, cmd, jobs, parallelOr(opts.RootOptions, opts.Parallel))
}
