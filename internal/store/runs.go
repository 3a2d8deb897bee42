package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/convoscript/internal/harness"
	"github.com/roach88/convoscript/internal/transcript"
)

// Status is the outcome of a run.
type Status string

const (
	StatusPassed Status = "passed"
	// StatusFailed is a verification failure (a *harness.Failure other
	// than TRANSCRIPT_IO).
	StatusFailed Status = "failed"
	// StatusError is anything else: transcript I/O, cancelled runs, bot
	// factory errors, failed re-recording.
	StatusError Status = "error"
)

// Run is one row of history.
type Run struct {
	ID         string
	Seq        int64
	Scenario   string
	Mode       string
	Status     Status
	Code       string
	Turn       int
	Line       int
	Message    string
	Transcript string
	Digest     string
	Sibling    string
	Duration   time.Duration
	StartedAt  time.Time
}

// RunFromResult converts a harness job result into a history row.
// Digest is the transcript digest after the run; it stays empty when the
// transcript does not exist.
func RunFromResult(res harness.JobResult) Run {
	run := Run{
		Scenario:   res.Job.Script.Name,
		Mode:       res.Job.Mode.String(),
		Status:     StatusPassed,
		Turn:       -1,
		Transcript: res.Job.Path,
		Sibling:    res.Sibling,
		Duration:   res.Duration,
	}
	if digest, err := transcript.Digest(res.Job.Path); err == nil {
		run.Digest = digest
	}
	if res.Err == nil {
		return run
	}

	run.Status = StatusError
	run.Message = res.Err.Error()

	var recErr *harness.RecordError
	if errors.As(res.Err, &recErr) && recErr.Failure != nil {
		run.Code = string(recErr.Failure.Code)
		run.Turn = recErr.Failure.Turn
		run.Line = recErr.Failure.Line
		return run
	}
	if f, ok := harness.AsFailure(res.Err); ok {
		run.Code = string(f.Code)
		run.Turn = f.Turn
		run.Line = f.Line
		run.Message = f.Message
		if f.Code != harness.CodeTranscriptIO {
			run.Status = StatusFailed
		}
	}
	return run
}

// WriteRun appends run to the history and returns it with ID, Seq and
// StartedAt filled in. A caller-supplied ID or StartedAt is kept.
func (s *Store) WriteRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = s.ids.Generate()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.clock.Now()
	}
	if run.Status == "" {
		run.Status = StatusPassed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scenario, mode, status, code, turn, line, message, transcript, digest, sibling, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.Scenario,
		run.Mode,
		string(run.Status),
		run.Code,
		run.Turn,
		run.Line,
		run.Message,
		run.Transcript,
		run.Digest,
		run.Sibling,
		run.Duration.Milliseconds(),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}

// Filter narrows ListRuns.
type Filter struct {
	// Scenario restricts results to one scenario name.
	Scenario string
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// ListRuns returns runs newest first.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	query := `
		SELECT id, seq, scenario, mode, status, code, turn, line, message, transcript, digest, sibling, duration_ms, started_at
		FROM runs`
	var args []any
	if f.Scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, f.Scenario)
	}
	query += ` ORDER BY seq DESC, id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastRun returns the most recent run of scenario. ok is false when the
// scenario has no history.
func (s *Store) LastRun(ctx context.Context, scenario string) (run Run, ok bool, err error) {
	runs, err := s.ListRuns(ctx, Filter{Scenario: scenario, Limit: 1})
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		status     string
		durationMs int64
		startedAt  string
	)
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Scenario,
		&run.Mode,
		&status,
		&run.Code,
		&run.Turn,
		&run.Line,
		&run.Message,
		&run.Transcript,
		&run.Digest,
		&run.Sibling,
		&durationMs,
		&startedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Status = Status(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	return run, nil
}
