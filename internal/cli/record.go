package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/harness"
)

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "record <scenario.yaml>...",
		Short: "Record golden transcripts",
		Long: `Run each scenario against a fresh bot and write its golden transcript,
replacing any existing one. Turns the bot fails are recorded as Exception
lines; only transcript I/O errors abort a recording.

Exit codes:
  0 - All transcripts written
  2 - Command or I/O error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := loadJobs(rootOpts, args, harness.ModeRecord)
			if err != nil {
				return err
			}
			return runJobs(cmd.Context(), rootOpts, cmd, jobs, parallelOr(rootOpts, parallel))
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "scenarios run at once (default from config)")
	return cmd
}

func parallelOr(opts *RootOptions, flag int) int {
	if flag > 0 {
		return flag
	}
	return opts.config().Parallel
}
