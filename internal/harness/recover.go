package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/convoscript/internal/transcript"
)

// VerifyOrRecord verifies script against the transcript at path. When
// verification fails, it records a fresh transcript from the original
// script to transcript.SiblingPath(path) and returns the verification
// failure unchanged.
//
// A sibling left by an earlier failed run is removed first, so after a
// passing run no sibling exists. The golden transcript itself is
// never written. TRANSCRIPT_IO failures and errors that are not a *Failure
// (cancelled context, factory errors) are returned without re-recording. If
// re-recording fails, a *RecordError is returned instead.
func (h *Harness) VerifyOrRecord(ctx context.Context, path string, script Script, check ExtraCheck) error {
	sibling := transcript.SiblingPath(path)
	if err := os.Remove(sibling); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioFailure(sibling, err)
	}

	err := h.Verify(ctx, path, script, check)
	if err == nil {
		return nil
	}

	fail, ok := AsFailure(err)
	if !ok || fail.Code == CodeTranscriptIO {
		return err
	}

	log := h.logger().With("scenario", script.Name, "path", path, "sibling", sibling)
	log.Warn("verification failed, re-recording", "code", fail.Code, "turn", fail.Turn, "line", fail.Line)

	if recErr := h.Record(ctx, sibling, script); recErr != nil {
		log.Error("re-recording failed", "error", recErr)
		return &RecordError{Sibling: sibling, Failure: fail, Err: recErr}
	}
	return err
}

// RecordError reports that re-recording after a failed verification itself
// failed. It replaces the verification failure, which is kept for context.
type RecordError struct {
	Sibling string
	Failure *Failure
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("re-record %s: %v (after %s)", e.Sibling, e.Err, e.Failure.Code)
}

// Unwrap returns the recording error.
func (e *RecordError) Unwrap() error {
	return e.Err
}
