package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/convoscript/internal/session"
	"github.com/roach88/convoscript/internal/transcript"
)

// Verify replays script against a fresh bot and checks every turn against
// the transcript at path. The transcript is never modified.
//
// check validates the State line after each successful turn. It is only
// consulted when Snapshot is enabled; a nil check compares the line with
// the bot's live snapshot.
func (h *Harness) Verify(ctx context.Context, path string, script Script, check ExtraCheck) error {
	f, err := os.Open(path)
	if err != nil {
		return ioFailure(path, err)
	}
	defer f.Close()

	if err := h.VerifyFrom(ctx, f, script, check); err != nil {
		if fail, ok := AsFailure(err); ok && fail.Path == "" {
			fail.Path = path
		}
		return err
	}
	h.logger().Info("transcript verified", "scenario", script.Name, "path", path, "turns", len(script.Inputs))
	return nil
}

// VerifyFrom is Verify reading the transcript from r.
func (h *Harness) VerifyFrom(ctx context.Context, r io.Reader, script Script, check ExtraCheck) error {
	if check != nil && !h.Snapshot {
		return fmt.Errorf("extra check requires Snapshot")
	}
	v := &verifier{
		h:      h,
		r:      transcript.NewReader(r),
		script: copyScript(script),
		check:  check,
		state:  expectHeader,
		turn:   -1,
	}
	return v.run(ctx)
}

// verifyState is the verifier's position in the transcript grammar.
type verifyState int

const (
	expectHeader verifyState = iota
	expectInput
	expectOutputs
	expectState
	verifyDone
)

func (s verifyState) String() string {
	switch s {
	case expectHeader:
		return "header"
	case expectInput:
		return "input"
	case expectOutputs:
		return "outputs"
	case expectState:
		return "state"
	case verifyDone:
		return "done"
	default:
		return fmt.Sprintf("verifyState(%d)", int(s))
	}
}

type verifier struct {
	h      *Harness
	r      *transcript.Reader
	script Script
	check  ExtraCheck
	state  verifyState
	turn   int
}

func (v *verifier) run(ctx context.Context) error {
	if err := v.verifyHeader(); err != nil {
		return err
	}

	err := session.With(ctx, v.h.Factory, v.script.Config(), v.h.logger(), func(s *session.Session) error {
		for i, input := range v.script.Inputs {
			v.turn = i
			if err := v.verifyTurn(ctx, s, input); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	v.turn = -1
	return v.verifyEnd()
}

func (v *verifier) fail(code FailureCode, format string, args ...any) *Failure {
	return &Failure{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Script:  v.script.Name,
		Turn:    v.turn,
		Line:    v.r.Line(),
	}
}

func (v *verifier) readErr(err error) *Failure {
	f := ioFailure("", err)
	f.Script = v.script.Name
	f.Turn = v.turn
	f.Line = v.r.Line()
	return f
}

// next reads the next labeled line. ok is false at end of transcript.
func (v *verifier) next() (label, payload string, ok bool, err error) {
	label, payload, err = v.r.ReadLabeled()
	if errors.Is(err, io.EOF) {
		return "", "", false, nil
	}
	if errors.Is(err, bufio.ErrTooLong) {
		f := v.fail(CodeOutputMismatch, "record exceeds %d bytes", transcript.MaxLineSize)
		f.Err = err
		return "", "", false, f
	}
	if err != nil {
		return "", "", false, v.readErr(err)
	}
	return label, payload, true, nil
}

func (v *verifier) verifyHeader() error {
	want, err := v.h.Header(v.script)
	if err != nil {
		return err
	}

	got, err := v.r.ReadHeader()
	if err != nil {
		if errors.Is(err, transcript.ErrTruncatedHeader) || errors.Is(err, bufio.ErrTooLong) {
			f := v.fail(CodeHeaderMismatch, "malformed header")
			f.Err = err
			return f
		}
		return v.readErr(err)
	}

	fields := []struct {
		name      string
		want, got string
	}{
		{"locale", want.Locale, got.Locale},
		{"initial state", want.State, got.State},
		{"entity hints", want.Entities, got.Entities},
	}
	for i, field := range fields {
		if field.want != field.got {
			f := v.fail(CodeHeaderMismatch, "%s differs", field.name)
			f.Line = i + 1
			f.Expected = field.got
			f.Actual = field.want
			return f
		}
	}

	v.state = expectInput
	return nil
}

func (v *verifier) verifyTurn(ctx context.Context, s *session.Session, input string) error {
	log := v.h.logger().With("scenario", v.script.Name, "turn", v.turn)

	// Expected input, cross-checked before the bot sees anything.
	label, payload, ok, err := v.next()
	if err != nil {
		return err
	}
	if !ok {
		return v.fail(CodeScriptDrift, "transcript ends after %d turns, script has %d", v.turn, len(v.script.Inputs))
	}
	if label != transcript.LabelFromUser {
		return v.unexpected(label, payload, transcript.LabelFromUser)
	}
	enc, err := v.h.codec().Encode(input)
	if err != nil {
		return fmt.Errorf("turn %d: encode input: %w", v.turn, err)
	}
	if payload != enc {
		f := v.fail(CodeScriptDrift, "scripted input differs from transcript")
		f.Expected = payload
		f.Actual = enc
		return f
	}

	res, err := s.RunTurn(ctx, input)
	if err != nil {
		return fmt.Errorf("turn %d: %w", v.turn, err)
	}
	v.state = expectOutputs

	label, payload, ok, err = v.next()
	if err != nil {
		return err
	}
	if !ok {
		return v.fail(CodeOutputMismatch, "transcript ends before the outputs of this turn")
	}

	switch label {
	case transcript.LabelException:
		if err := v.verifyException(res, payload); err != nil {
			return err
		}
		log.Debug("failure matched", "input", input, "error", res.Message())
		v.state = expectInput
		return nil
	case "":
		if err := v.verifyOutputs(res, payload); err != nil {
			return err
		}
	default:
		return v.unexpected(label, payload, "output count")
	}

	if v.h.Snapshot {
		v.state = expectState
		if err := v.verifyState(ctx, s); err != nil {
			return err
		}
	}

	log.Debug("turn matched", "input", input, "outputs", len(res.Outputs))
	v.state = expectInput
	return nil
}

func (v *verifier) verifyException(res session.TurnResult, payload string) error {
	if !res.Failed() {
		f := v.fail(CodeOutputMismatch, "transcript expects a failure, turn produced %d outputs", len(res.Outputs))
		f.Expected = transcript.LabelException + ":" + payload
		return f
	}
	msg, err := v.h.codec().Encode(res.Message())
	if err != nil {
		return fmt.Errorf("turn %d: encode failure message: %w", v.turn, err)
	}
	if msg != payload {
		f := v.fail(CodeTurnFailure, "failure message differs from transcript")
		f.Expected = payload
		f.Actual = msg
		return f
	}
	return nil
}

func (v *verifier) verifyOutputs(res session.TurnResult, countText string) error {
	if res.Failed() {
		f := v.fail(CodeTurnFailure, "bot failed a turn the transcript expects to succeed")
		f.Expected = countText
		f.Actual = strconv.Quote(res.Message())
		f.Err = res.Err
		return f
	}

	n, err := strconv.Atoi(countText)
	if err != nil || n < 0 {
		return v.fail(CodeOutputMismatch, "malformed output count %q", countText)
	}
	countLine := v.r.Line()

	want := make([]transcript.Output, 0, n)
	for j := 0; j < n; j++ {
		label, payload, ok, err := v.next()
		if err != nil {
			return err
		}
		if !ok {
			return v.fail(CodeOutputMismatch, "transcript ends after %d of %d outputs", j, n)
		}
		kind, known := transcript.KindForLabel(label)
		if !known {
			return v.unexpected(label, payload, "output record")
		}
		want = append(want, transcript.Output{Kind: kind, Payload: payload})
	}

	got, err := v.h.encodeOutputs(res.Outputs)
	if err != nil {
		return fmt.Errorf("turn %d: %w", v.turn, err)
	}

	if len(got) != len(want) {
		f := v.fail(CodeOutputMismatch, "output count differs")
		f.Line = countLine
		f.Expected = strconv.Itoa(len(want))
		f.Actual = strconv.Itoa(len(got))
		f.Diff = cmp.Diff(outputLines(want), outputLines(got))
		return f
	}

	for j := range want {
		if want[j] == got[j] {
			continue
		}
		f := v.fail(CodeOutputMismatch, "output %d differs", j)
		f.Line = countLine + 1 + j
		f.Expected = outputLine(want[j])
		f.Actual = outputLine(got[j])
		f.Diff = v.valueDiff(want[j], got[j])
		return f
	}
	return nil
}

func (v *verifier) verifyState(ctx context.Context, s *session.Session) error {
	label, payload, ok, err := v.next()
	if err != nil {
		return err
	}
	if !ok {
		return v.fail(CodeOutputMismatch, "transcript ends before the State record")
	}
	if label != transcript.LabelState {
		return v.unexpected(label, payload, transcript.LabelState)
	}

	if v.check != nil {
		if err := v.check(ctx, s, payload); err != nil {
			f := v.fail(CodeOutputMismatch, "state check failed")
			f.Err = err
			return f
		}
		return nil
	}

	live, err := v.h.encodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("turn %d: %w", v.turn, err)
	}
	if live != payload {
		f := v.fail(CodeOutputMismatch, "state differs from transcript")
		f.Expected = payload
		f.Actual = live
		f.Diff = v.decodedDiff(payload, live)
		return f
	}
	return nil
}

func (v *verifier) verifyEnd() error {
	label, payload, ok, err := v.next()
	if err != nil {
		return err
	}
	if ok {
		if label == transcript.LabelFromUser {
			f := v.fail(CodeScriptDrift, "transcript has more turns than the script (%d)", len(v.script.Inputs))
			f.Expected = transcript.LabelFromUser + ":" + payload
			return f
		}
		return v.unexpected(label, payload, "end of transcript")
	}
	v.state = verifyDone
	return nil
}

// unexpected reports a record that does not fit the grammar at this point.
// An output record where another turn should begin means the turn produced
// fewer outputs than recorded; anything else is drift.
func (v *verifier) unexpected(label, payload, want string) *Failure {
	code := CodeOutputMismatch
	if label == transcript.LabelFromUser || want == transcript.LabelFromUser {
		code = CodeScriptDrift
	}
	if _, isOutput := transcript.KindForLabel(label); isOutput {
		code = CodeOutputMismatch
	}
	f := v.fail(code, "expected %s while reading %s, found %q record", want, v.state, labelName(label))
	if label == "" {
		f.Actual = payload
	} else {
		f.Actual = label + ":" + payload
	}
	return f
}

func (v *verifier) valueDiff(want, got transcript.Output) string {
	if want.Kind != got.Kind {
		return cmp.Diff(want.Kind.String(), got.Kind.String())
	}
	return v.decodedDiff(want.Payload, got.Payload)
}

// decodedDiff renders a structural diff of two encoded values, falling back
// to a textual diff when either side does not decode.
func (v *verifier) decodedDiff(want, got string) string {
	wv, werr := v.h.codec().Decode(want)
	gv, gerr := v.h.codec().Decode(got)
	if werr != nil || gerr != nil {
		return cmp.Diff(want, got)
	}
	return cmp.Diff(wv, gv)
}

func outputLine(o transcript.Output) string {
	return o.Kind.String() + ":" + o.Payload
}

func outputLines(outputs []transcript.Output) []string {
	lines := make([]string, len(outputs))
	for i, o := range outputs {
		lines[i] = outputLine(o)
	}
	return lines
}

func labelName(label string) string {
	if label == "" {
		return "unlabeled"
	}
	return label
}
