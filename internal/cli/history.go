package cli

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/store"
)

// HistoryEntry is one run as reported by the history command.
type HistoryEntry struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Scenario   string `json:"scenario"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Turn       int    `json:"turn"`
	Line       int    `json:"line,omitempty"`
	Message    string `json:"message,omitempty"`
	Transcript string `json:"transcript"`
	Digest     string `json:"digest,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded and verified runs",
		Long: `List runs from the history database, newest first.

The database is history_db from the config or --db.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, cmd, store.Filter{Scenario: name, Limit: limit})
		},
	}

	cmd.Flags().StringVar(&name, "scenario", "", "only runs of this scenario")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 for all)")

	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, filter store.Filter) error {
	formatter := opts.formatter(cmd)

	path := opts.config().HistoryDB
	if path == "" {
		return NewExitError(ExitCommandError, "no history database configured (use --db)")
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, "history database not found: "+path)
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	entries := make([]HistoryEntry, len(runs))
	for i, r := range runs {
		entries[i] = HistoryEntry{
			ID:         r.ID,
			Seq:        r.Seq,
			Scenario:   r.Scenario,
			Mode:       r.Mode,
			Status:     string(r.Status),
			Code:       r.Code,
			Turn:       r.Turn,
			Line:       r.Line,
			Message:    r.Message,
			Transcript: r.Transcript,
			Digest:     r.Digest,
			DurationMs: r.Duration.Milliseconds(),
			StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		}
	}

	if formatter.JSON() {
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		return formatter.Success("No runs recorded.")
	}
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{e.Seq, e.StartedAt, e.Scenario, e.Mode, statusMark(e.Status) + " " + e.Status, e.Code, shortDigest(e.Digest)}
	}
	formatter.Table(table.Row{"#", "Started", "Scenario", "Mode", "Result", "Code", "Transcript"}, rows)
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
