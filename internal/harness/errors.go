package harness

import (
	"errors"
	"fmt"
	"strings"
)

// FailureCode categorizes verification failures.
type FailureCode string

const (
	// CodeHeaderMismatch indicates the transcript header disagrees with the
	// run's locale, initial state or entity hints.
	CodeHeaderMismatch FailureCode = "HEADER_MISMATCH"

	// CodeScriptDrift indicates the transcript's recorded input disagrees with
	// the scripted input at the same position, or the turn counts differ.
	CodeScriptDrift FailureCode = "SCRIPT_DRIFT"

	// CodeOutputMismatch indicates the count, order or content of a turn's
	// live outputs disagrees with the transcript.
	CodeOutputMismatch FailureCode = "OUTPUT_MISMATCH"

	// CodeTurnFailure indicates the bot failed a turn the transcript expected
	// to succeed, or failed with a different message.
	CodeTurnFailure FailureCode = "TURN_FAILURE"

	// CodeTranscriptIO indicates the transcript file could not be read or
	// written. Never recovered by re-recording.
	CodeTranscriptIO FailureCode = "TRANSCRIPT_IO"
)

// Failure is a fatal verification or recording condition.
//
// Turn is the zero-based index of the scripted input being checked, or -1
// when the failure concerns the header or the file as a whole. Line is the
// 1-based transcript line where the disagreement was found (0 if unknown).
type Failure struct {
	Code     FailureCode
	Message  string
	Script   string
	Path     string
	Turn     int
	Line     int
	Expected string
	Actual   string

	// Diff is a go-cmp rendering of expected vs actual, when available.
	Diff string

	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", f.Code, f.Message)

	var loc []string
	if f.Script != "" {
		loc = append(loc, "script="+f.Script)
	}
	if f.Turn >= 0 {
		loc = append(loc, fmt.Sprintf("turn=%d", f.Turn))
	}
	if f.Line > 0 {
		loc = append(loc, fmt.Sprintf("line=%d", f.Line))
	}
	if len(loc) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(loc, ", "))
	}
	if f.Expected != "" || f.Actual != "" {
		fmt.Fprintf(&b, "\n  expected: %s\n  actual:   %s", f.Expected, f.Actual)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, "\n  cause: %v", f.Err)
	}
	if f.Diff != "" {
		fmt.Fprintf(&b, "\n  diff (-expected +actual):\n%s", f.Diff)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns the Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func hasCode(err error, code FailureCode) bool {
	f, ok := AsFailure(err)
	return ok && f.Code == code
}

// IsHeaderMismatch returns true if err is a header mismatch.
func IsHeaderMismatch(err error) bool { return hasCode(err, CodeHeaderMismatch) }

// IsScriptDrift returns true if err is a script drift failure.
func IsScriptDrift(err error) bool { return hasCode(err, CodeScriptDrift) }

// IsOutputMismatch returns true if err is an output mismatch.
func IsOutputMismatch(err error) bool { return hasCode(err, CodeOutputMismatch) }

// IsTurnFailure returns true if err is an unmatched bot failure.
func IsTurnFailure(err error) bool { return hasCode(err, CodeTurnFailure) }

// IsTranscriptIO returns true if err is a transcript read/write fault.
func IsTranscriptIO(err error) bool { return hasCode(err, CodeTranscriptIO) }

func ioFailure(path string, err error) *Failure {
	return &Failure{
		Code:    CodeTranscriptIO,
		Message: "transcript i/o",
		Path:    path,
		Turn:    -1,
		Err:     err,
	}
}
