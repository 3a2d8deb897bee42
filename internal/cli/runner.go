package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/formbot"
	"github.com/roach88/convoscript/internal/formspec"
	"github.com/roach88/convoscript/internal/harness"
	"github.com/roach88/convoscript/internal/scenario"
	"github.com/roach88/convoscript/internal/store"
)

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Turn       int    `json:"turn"`
	Line       int    `json:"line,omitempty"`
	Error      string `json:"error,omitempty"`
	Transcript string `json:"transcript"`
	Sibling    string `json:"sibling,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// RunSummary is the outcome of record, verify and test.
type RunSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Errored   int              `json:"errored"`
	Total     int              `json:"total"`
}

// jobBuilder turns scenarios into harness jobs, compiling each form once.
type jobBuilder struct {
	opts  *RootOptions
	forms map[string]*formspec.Form
}

func newJobBuilder(opts *RootOptions) *jobBuilder {
	return &jobBuilder{opts: opts, forms: make(map[string]*formspec.Form)}
}

func (b *jobBuilder) build(s *scenario.Scenario, mode harness.Mode) (harness.Job, error) {
	formPath := s.FormPath()
	form, ok := b.forms[formPath]
	if !ok {
		var err error
		form, err = formspec.LoadFile(formPath)
		if err != nil {
			return harness.Job{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		b.forms[formPath] = form
	}

	script, err := s.Script()
	if err != nil {
		return harness.Job{}, err
	}

	h := harness.New(formbot.Factory(form),
		harness.WithLogger(b.opts.logger()),
		harness.WithSnapshot(s.Snapshot),
	)
	return harness.Job{Path: s.TranscriptPath(), Script: script, Mode: mode, Harness: h}, nil
}

// loadJobs loads scenario files and builds one job per file.
func loadJobs(opts *RootOptions, files []string, mode harness.Mode) ([]harness.Job, error) {
	b := newJobBuilder(opts)
	jobs := make([]harness.Job, 0, len(files))
	for _, f := range files {
		s, err := scenario.Load(f)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		job, err := b.build(s, mode)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load form", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// runJobs runs jobs, appends them to the run history and reports them.
func runJobs(ctx context.Context, opts *RootOptions, cmd *cobra.Command, jobs []harness.Job, parallel int) error {
	log := opts.logger()
	runner := harness.New(nil, harness.WithLogger(log))

	for _, job := range jobs {
		if job.Mode == harness.ModeRecord {
			if err := os.MkdirAll(filepath.Dir(job.Path), 0755); err != nil {
				return WrapExitError(ExitCommandError, "failed to create transcript directory", err)
			}
		}
	}

	results := runner.RunAll(ctx, jobs, parallel)

	runs := make([]store.Run, len(results))
	for i, res := range results {
		runs[i] = store.RunFromResult(res)
	}
	if err := writeHistory(ctx, opts, runs); err != nil {
		return err
	}

	summary := summarize(results, runs)
	if err := reportSummary(opts.formatter(cmd), summary); err != nil {
		return err
	}

	switch {
	case summary.Errored > 0:
		return NewExitError(ExitCommandError, fmt.Sprintf("%d scenario(s) could not run", summary.Errored))
	case summary.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

func writeHistory(ctx context.Context, opts *RootOptions, runs []store.Run) error {
	path := opts.config().HistoryDB
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create history directory", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	for _, run := range runs {
		if _, err := st.WriteRun(ctx, run); err != nil {
			return WrapExitError(ExitCommandError, "failed to write history", err)
		}
	}
	opts.logger().Debug("history written", "path", path, "runs", len(runs))
	return nil
}

func summarize(results []harness.JobResult, runs []store.Run) RunSummary {
	summary := RunSummary{
		Scenarios: make([]ScenarioResult, len(results)),
		Total:     len(results),
	}
	for i, res := range results {
		run := runs[i]
		sr := ScenarioResult{
			Name:       run.Scenario,
			Mode:       run.Mode,
			Status:     string(run.Status),
			Code:       run.Code,
			Turn:       run.Turn,
			Line:       run.Line,
			Transcript: run.Transcript,
			Sibling:    run.Sibling,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		summary.Scenarios[i] = sr

		switch run.Status {
		case store.StatusPassed:
			summary.Passed++
		case store.StatusFailed:
			summary.Failed++
		default:
			summary.Errored++
		}
	}
	return summary
}

func reportSummary(f *OutputFormatter, summary RunSummary) error {
	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: summary}
		if summary.Failed+summary.Errored > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_RUN_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed, %d could not run", summary.Failed, summary.Errored),
			}
		}
		return f.Encode(resp)
	}

	if summary.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	rows := make([]table.Row, len(summary.Scenarios))
	for i, sr := range summary.Scenarios {
		turn := ""
		if sr.Turn >= 0 {
			turn = strconv.Itoa(sr.Turn)
		}
		rows[i] = table.Row{statusMark(sr.Status) + " " + sr.Name, sr.Mode, sr.Status, sr.Code, turn, sr.DurationMs}
	}
	f.Table(table.Row{"Scenario", "Mode", "Result", "Code", "Turn", "ms"}, rows)

	for _, sr := range summary.Scenarios {
		if sr.Error == "" {
			continue
		}
		fmt.Fprintf(f.Writer, "\n%s (%s):\n%s\n", sr.Name, sr.Transcript, sr.Error)
		if sr.Sibling != "" {
			fmt.Fprintf(f.Writer, "new transcript: %s\n", sr.Sibling)
		}
	}

	fmt.Fprintf(f.Writer, "\n%d passed, %d failed, %d errored, %d total\n", summary.Passed, summary.Failed, summary.Errored, summary.Total)
	return nil
}

func statusMark(status string) string {
	if status == string(store.StatusPassed) {
		return "✓"
	}
	return "✗"
}
