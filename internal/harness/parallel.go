package harness

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/convoscript/internal/transcript"
)

// Mode selects what a Job does with its transcript.
type Mode int

const (
	// ModeVerify runs VerifyOrRecord.
	ModeVerify Mode = iota
	// ModeRecord overwrites the transcript with a fresh recording.
	ModeRecord
)

func (m Mode) String() string {
	if m == ModeRecord {
		return "record"
	}
	return "verify"
}

// Job is one script run against its transcript.
type Job struct {
	Path   string
	Script Script
	Mode   Mode

	// Harness runs this job instead of the RunAll receiver when set, so
	// scripts driving different bots can share one run.
	Harness *Harness
}

// JobResult is the outcome of a Job. Err is nil on success.
type JobResult struct {
	Job      Job
	Err      error
	Duration time.Duration

	// Sibling is the re-recorded transcript path, set only when a failed
	// verification produced one.
	Sibling string
}

// Passed reports whether the job succeeded.
func (r JobResult) Passed() bool {
	return r.Err == nil
}

// RunAll runs jobs with at most parallel in flight and returns their
// results in job order. Each job owns its own session, so jobs share no
// state; one job failing does not stop the others.
func (h *Harness) RunAll(ctx context.Context, jobs []Job, parallel int) []JobResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = h.runJob(gctx, job)
			return nil
		})
	}
	_ = g.Wait() // errors captured in JobResult.Err

	return results
}

func (h *Harness) runJob(ctx context.Context, job Job) JobResult {
	if job.Harness != nil && job.Harness != h {
		return job.Harness.runJob(ctx, job)
	}
	start := time.Now()
	res := JobResult{Job: job}

	switch job.Mode {
	case ModeRecord:
		res.Err = h.Record(ctx, job.Path, job.Script)
	default:
		res.Err = h.VerifyOrRecord(ctx, job.Path, job.Script, nil)
		if f, ok := AsFailure(res.Err); ok && f.Code != CodeTranscriptIO {
			if _, isRecordErr := res.Err.(*RecordError); !isRecordErr {
				res.Sibling = transcript.SiblingPath(job.Path)
			}
		}
	}

	res.Duration = time.Since(start)
	h.logger().Debug("job finished", "scenario", job.Script.Name, "mode", job.Mode.String(), "passed", res.Passed(), "duration", res.Duration)
	return res
}
