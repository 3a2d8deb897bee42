package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/harness"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "verify <scenario.yaml>...",
		Short: "Verify bots against golden transcripts",
		Long: `Replay each scenario's inputs against a fresh bot and compare every reply
with its golden transcript. On the first difference the run stops, a fresh
transcript is recorded to <name>-new<ext> beside the golden file, and the
original failure is reported.

Exit codes:
  0 - All transcripts verified
  1 - One or more scenarios failed verification
  2 - Command or I/O error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := loadJobs(rootOpts, args, harness.ModeVerify)
			if err != nil {
				return err
			}
			return runJobs(cmd.Context(), rootOpts, cmd, jobs, parallelOr(rootOpts, parallel))
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "scenarios run at once (default from config)")
	return cmd
}
