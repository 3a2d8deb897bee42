package harness

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
	"github.com/roach88/convoscript/internal/testutil"
	"github.com/roach88/convoscript/internal/transcript"
)

var simpleReplies = map[string]testutil.Reply{
	"Hi": {Outputs: []session.Output{
		session.Text("Please enter text"),
		session.Structured(map[string]any{"buttons": []any{"Yes", "No"}}),
	}},
	"quit": {Fail: "Form quit."},
}

func simpleScript() Script {
	return Script{
		Name:   "simple",
		Locale: "en-us",
		Inputs: []string{"Hi", "some text here", "quit"},
	}
}

func recordFile(t *testing.T, h *Harness, script Script) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), script.Name+".script")
	require.NoError(t, h.Record(context.Background(), path, script))
	return path
}

func requireFailure(t *testing.T, err error, code FailureCode) *Failure {
	t.Helper()
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok, "expected *Failure, got %T: %v", err, err)
	require.Equal(t, code, f.Code, "failure: %v", err)
	return f
}

func TestRecordWritesTranscript(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))

	var buf bytes.Buffer
	require.NoError(t, h.RecordTo(context.Background(), &buf, simpleScript()))

	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "simple.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), buf.String())
}

func TestRunWithGolden(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	require.NoError(t, RunWithGolden(t, h, simpleScript()))
}

func TestRecordHeaderCarriesStateAndEntities(t *testing.T) {
	h := New(testutil.ScriptedFactory(nil))
	script := Script{
		Name:     "hints",
		Locale:   "fr",
		State:    ir.IRObject{"Text": ir.IRString("pre"), "Integer": ir.IRInt(3)},
		Entities: []session.EntityHint{{Type: "Float", Entity: "1.5"}},
	}

	var buf bytes.Buffer
	require.NoError(t, h.RecordTo(context.Background(), &buf, script))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "fr", lines[0])
	assert.Equal(t, `{"Integer":3,"Text":"pre"}`, lines[1])
	assert.Equal(t, `[{"entity":"1.5","type":"Float"}]`, lines[2])
}

func TestRoundTrip(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())

	require.NoError(t, h.Verify(context.Background(), path, simpleScript(), nil))
}

func TestRoundTripEmptyScript(t *testing.T) {
	h := New(testutil.ScriptedFactory(nil))
	script := Script{Name: "empty", Locale: "en-us"}
	path := recordFile(t, h, script)

	require.NoError(t, h.Verify(context.Background(), path, script, nil))
}

func TestTurnCountMatchesOutputRecords(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))

	var buf bytes.Buffer
	require.NoError(t, h.RecordTo(context.Background(), &buf, simpleScript()))

	r := transcript.NewReader(&buf)
	_, err := r.ReadHeader()
	require.NoError(t, err)

	turns := 0
	for {
		label, _, err := r.ReadLabeled()
		if err != nil {
			break
		}
		require.Equal(t, transcript.LabelFromUser, label)
		turns++

		label, payload, err := r.ReadLabeled()
		require.NoError(t, err)
		if label == transcript.LabelException {
			continue
		}
		require.Equal(t, "", label)
		n, err := strconv.Atoi(payload)
		require.NoError(t, err)
		for j := 0; j < n; j++ {
			label, _, err := r.ReadLabeled()
			require.NoError(t, err)
			_, isOutput := transcript.KindForLabel(label)
			assert.True(t, isOutput)
		}
	}
	assert.Equal(t, len(simpleScript().Inputs), turns)
}

func TestVerifyDetectsDriftAtPosition(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	script := simpleScript()
	path := recordFile(t, h, script)

	for k := range script.Inputs {
		drifted := simpleScript()
		drifted.Inputs[k] = "something else"

		f := requireFailure(t, h.Verify(context.Background(), path, drifted, nil), CodeScriptDrift)
		assert.Equal(t, k, f.Turn)
		assert.Equal(t, `"something else"`, f.Actual)
	}
}

func TestVerifyDetectsTurnCountDrift(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())

	longer := simpleScript()
	longer.Inputs = append(longer.Inputs, "extra")
	f := requireFailure(t, h.Verify(context.Background(), path, longer, nil), CodeScriptDrift)
	assert.Equal(t, 3, f.Turn)

	shorter := simpleScript()
	shorter.Inputs = shorter.Inputs[:2]
	f = requireFailure(t, h.Verify(context.Background(), path, shorter, nil), CodeScriptDrift)
	assert.Contains(t, f.Message, "more turns")
}

func TestVerifyIsOrderSensitive(t *testing.T) {
	recorder := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi": {Outputs: []session.Output{session.Text("A"), session.Text("B")}},
	}))
	script := Script{Name: "order", Locale: "en-us", Inputs: []string{"Hi"}}
	path := recordFile(t, recorder, script)

	swapped := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi": {Outputs: []session.Output{session.Text("B"), session.Text("A")}},
	}))
	f := requireFailure(t, swapped.Verify(context.Background(), path, script, nil), CodeOutputMismatch)
	assert.Equal(t, 0, f.Turn)
	assert.Equal(t, 6, f.Line)
	assert.Equal(t, `ToUserText:"A"`, f.Expected)
	assert.Equal(t, `ToUserText:"B"`, f.Actual)
	assert.NotEmpty(t, f.Diff)
}

func TestVerifyDetectsKindMismatch(t *testing.T) {
	recorder := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi": {Outputs: []session.Output{session.Text("yes")}},
	}))
	script := Script{Name: "kind", Locale: "en-us", Inputs: []string{"Hi"}}
	path := recordFile(t, recorder, script)

	structured := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi": {Outputs: []session.Output{session.Structured("yes")}},
	}))
	requireFailure(t, structured.Verify(context.Background(), path, script, nil), CodeOutputMismatch)
}

func TestVerifyDetectsCountMismatch(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())

	fewer := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi":   {Outputs: []session.Output{session.Text("Please enter text")}},
		"quit": {Fail: "Form quit."},
	}))
	f := requireFailure(t, fewer.Verify(context.Background(), path, simpleScript(), nil), CodeOutputMismatch)
	assert.Equal(t, 0, f.Turn)
	assert.Equal(t, 5, f.Line)
	assert.Equal(t, "2", f.Expected)
	assert.Equal(t, "1", f.Actual)
	assert.Contains(t, f.Diff, "ToUserButtons")
}

func TestVerifyMatchesRecordedFailure(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())

	otherMessage := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi":   simpleReplies["Hi"],
		"quit": {Fail: "Form abandoned."},
	}))
	f := requireFailure(t, otherMessage.Verify(context.Background(), path, simpleScript(), nil), CodeTurnFailure)
	assert.Equal(t, 2, f.Turn)
	assert.Equal(t, `"Form quit."`, f.Expected)
	assert.Equal(t, `"Form abandoned."`, f.Actual)

	noFailure := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi": simpleReplies["Hi"],
	}))
	f = requireFailure(t, noFailure.Verify(context.Background(), path, simpleScript(), nil), CodeOutputMismatch)
	assert.Equal(t, 2, f.Turn)
}

func TestVerifyUnexpectedFailure(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())

	failing := New(testutil.ScriptedFactory(map[string]testutil.Reply{
		"Hi": {Fail: "boom"},
	}))
	f := requireFailure(t, failing.Verify(context.Background(), path, simpleScript(), nil), CodeTurnFailure)
	assert.Equal(t, 0, f.Turn)
}

func TestVerifyHeaderMismatch(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())

	tests := []struct {
		name   string
		mutate func(*Script)
		line   int
	}{
		{"locale", func(s *Script) { s.Locale = "fr" }, 1},
		{"state", func(s *Script) { s.State = ir.IRObject{"Text": ir.IRString("x")} }, 2},
		{"entities", func(s *Script) { s.Entities = []session.EntityHint{{Type: "Text", Entity: "x"}} }, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := simpleScript()
			tt.mutate(&script)
			f := requireFailure(t, h.Verify(context.Background(), path, script, nil), CodeHeaderMismatch)
			assert.Equal(t, tt.line, f.Line)
			assert.Equal(t, -1, f.Turn)
		})
	}
}

func TestVerifyTruncatedHeader(t *testing.T) {
	h := New(testutil.ScriptedFactory(nil))
	err := h.VerifyFrom(context.Background(), strings.NewReader("en-us\n"), Script{Locale: "en-us"}, nil)
	requireFailure(t, err, CodeHeaderMismatch)
}

func TestVerifyMissingFileIsIOFailure(t *testing.T) {
	h := New(testutil.ScriptedFactory(nil))
	path := filepath.Join(t.TempDir(), "missing.script")

	requireFailure(t, h.Verify(context.Background(), path, simpleScript(), nil), CodeTranscriptIO)

	err := h.VerifyOrRecord(context.Background(), path, simpleScript(), nil)
	assert.True(t, IsTranscriptIO(err))
	assert.NoFileExists(t, transcript.SiblingPath(path))
}

func TestSnapshotStateLines(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies), WithSnapshot(true))
	script := simpleScript()

	var buf bytes.Buffer
	require.NoError(t, h.RecordTo(context.Background(), &buf, script))
	assert.Contains(t, buf.String(), "\nState:{\"last\":\"Hi\",\"turns\":1}\n")
	// no State line after a failed turn
	assert.True(t, strings.HasSuffix(buf.String(), "Exception:\"Form quit.\"\n"))

	require.NoError(t, h.VerifyFrom(context.Background(), bytes.NewReader(buf.Bytes()), script, nil))

	var seen []string
	check := func(ctx context.Context, s *session.Session, payload string) error {
		seen = append(seen, payload)
		return nil
	}
	require.NoError(t, h.VerifyFrom(context.Background(), bytes.NewReader(buf.Bytes()), script, check))
	assert.Equal(t, []string{`{"last":"Hi","turns":1}`, `{"last":"some text here","turns":2}`}, seen)

	tampered := strings.Replace(buf.String(), `"turns":2`, `"turns":7`, 1)
	f := requireFailure(t, h.VerifyFrom(context.Background(), strings.NewReader(tampered), script, nil), CodeOutputMismatch)
	assert.Equal(t, 1, f.Turn)
	assert.NotEmpty(t, f.Diff)
}

func TestExtraCheckRequiresSnapshot(t *testing.T) {
	h := New(testutil.ScriptedFactory(nil))
	check := func(context.Context, *session.Session, string) error { return nil }
	err := h.VerifyFrom(context.Background(), strings.NewReader(""), Script{}, check)
	require.Error(t, err)
	_, isFailure := AsFailure(err)
	assert.False(t, isFailure)
}

func TestVerifyOrRecordWritesSibling(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	script := simpleScript()
	path := recordFile(t, h, script)
	sibling := transcript.SiblingPath(path)

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	mutated := bytes.Replace(original, []byte(`ToUserText:"Please enter text"`), []byte(`ToUserText:"Please enter TEXT"`), 1)
	require.NoError(t, os.WriteFile(path, mutated, 0o644))

	err = h.VerifyOrRecord(context.Background(), path, script, nil)
	f := requireFailure(t, err, CodeOutputMismatch)
	assert.Equal(t, 0, f.Turn)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, mutated, after, "golden transcript must not be touched")

	require.FileExists(t, sibling)
	regenerated, err := os.ReadFile(sibling)
	require.NoError(t, err)
	assert.Equal(t, original, regenerated)

	// The sibling, promoted to golden, passes with the unmodified inputs.
	require.NoError(t, os.Rename(sibling, path))
	require.NoError(t, h.VerifyOrRecord(context.Background(), path, script, nil))
	assert.NoFileExists(t, sibling)
}

func TestVerifyOrRecordRemovesStaleSibling(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())
	sibling := transcript.SiblingPath(path)
	require.NoError(t, os.WriteFile(sibling, []byte("stale"), 0o644))

	require.NoError(t, h.VerifyOrRecord(context.Background(), path, simpleScript(), nil))
	assert.NoFileExists(t, sibling)
}

func TestVerifyOrRecordSiblingNotRemovable(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	path := recordFile(t, h, simpleScript())
	sibling := transcript.SiblingPath(path)
	require.NoError(t, os.MkdirAll(filepath.Join(sibling, "child"), 0o755))

	err := h.VerifyOrRecord(context.Background(), path, simpleScript(), nil)
	assert.True(t, IsTranscriptIO(err))
}

func TestVerifyOrRecordFailedRecordLeavesNoSibling(t *testing.T) {
	calls := 0
	scripted := testutil.ScriptedFactory(simpleReplies)
	factory := func(ctx context.Context, cfg session.Config) (session.Bot, *session.Outbox, error) {
		calls++
		if calls > 1 {
			return nil, nil, errors.New("disk gone")
		}
		return scripted(ctx, cfg)
	}
	h := New(factory)
	script := simpleScript()

	path := filepath.Join(t.TempDir(), "rec.script")
	require.NoError(t, New(scripted).Record(context.Background(), path, script))
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	mutated := bytes.Replace(original, []byte(`ToUserText:"Please enter text"`), []byte(`ToUserText:"Please enter TEXT"`), 1)
	require.NoError(t, os.WriteFile(path, mutated, 0o644))

	err = h.VerifyOrRecord(context.Background(), path, script, nil)
	require.Error(t, err)
	var rec *RecordError
	require.True(t, errors.As(err, &rec), "expected *RecordError, got %T: %v", err, err)
	assert.Equal(t, CodeOutputMismatch, rec.Failure.Code)
	assert.Equal(t, transcript.SiblingPath(path), rec.Sibling)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Equal(t, 2, calls)

	assert.NoFileExists(t, transcript.SiblingPath(path))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the golden transcript remains")
	assert.Equal(t, "rec.script", entries[0].Name())
}

func TestRecordFailureLeavesNoFile(t *testing.T) {
	h := New(func(ctx context.Context, cfg session.Config) (session.Bot, *session.Outbox, error) {
		return nil, nil, errors.New("no bot")
	})
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.script")

	require.Error(t, h.Record(context.Background(), path, simpleScript()))
	assert.NoFileExists(t, path)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordReplacesExistingFile(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	dir := t.TempDir()
	path := filepath.Join(dir, "simple.script")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, h.Record(context.Background(), path, simpleScript()))
	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "simple.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(golden), string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestVerifyDistinguishesUnicodeForms(t *testing.T) {
	composed := map[string]testutil.Reply{"Hi": {Outputs: []session.Output{session.Text("caf\u00e9")}}}
	decomposed := map[string]testutil.Reply{"Hi": {Outputs: []session.Output{session.Text("cafe\u0301")}}}
	script := Script{Name: "accents", Locale: "en-us", Inputs: []string{"Hi", "\u00e9"}}

	path := recordFile(t, New(testutil.ScriptedFactory(composed)), script)
	require.NoError(t, New(testutil.ScriptedFactory(composed)).Verify(context.Background(), path, script, nil))

	err := New(testutil.ScriptedFactory(decomposed)).Verify(context.Background(), path, script, nil)
	f := requireFailure(t, err, CodeOutputMismatch)
	assert.Equal(t, 0, f.Turn)

	drifted := script
	drifted.Inputs = []string{"Hi", "e\u0301"}
	err = New(testutil.ScriptedFactory(composed)).Verify(context.Background(), path, drifted, nil)
	f = requireFailure(t, err, CodeScriptDrift)
	assert.Equal(t, 1, f.Turn)
}

func TestRunAll(t *testing.T) {
	h := New(testutil.ScriptedFactory(simpleReplies))
	dir := t.TempDir()

	var jobs []Job
	for _, name := range []string{"one", "two", "three"} {
		script := simpleScript()
		script.Name = name
		path := filepath.Join(dir, name+".script")
		require.NoError(t, h.Record(context.Background(), path, script))
		jobs = append(jobs, Job{Path: path, Script: script, Mode: ModeVerify})
	}
	jobs[1].Script.Locale = "fr"

	fresh := simpleScript()
	fresh.Name = "fresh"
	jobs = append(jobs, Job{Path: filepath.Join(dir, "fresh.script"), Script: fresh, Mode: ModeRecord})

	results := h.RunAll(context.Background(), jobs, 2)
	require.Len(t, results, 4)

	assert.True(t, results[0].Passed())
	assert.True(t, IsHeaderMismatch(results[1].Err))
	assert.Equal(t, filepath.Join(dir, "two-new.script"), results[1].Sibling)
	assert.FileExists(t, results[1].Sibling)
	assert.True(t, results[2].Passed())
	assert.True(t, results[3].Passed())
	assert.FileExists(t, filepath.Join(dir, "fresh.script"))

	for i, r := range results {
		assert.Equal(t, jobs[i].Script.Name, r.Job.Script.Name)
	}
}

func TestRunAll_JobHarness(t *testing.T) {
	dir := t.TempDir()
	plain := New(testutil.ScriptedFactory(simpleReplies))
	snap := New(testutil.ScriptedFactory(simpleReplies), WithSnapshot(true))

	path := filepath.Join(dir, "snap.script")
	jobs := []Job{{Path: path, Script: simpleScript(), Mode: ModeRecord, Harness: snap}}
	results := plain.RunAll(context.Background(), jobs, 1)
	require.True(t, results[0].Passed())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "State:")
}

func TestAssertConversation(t *testing.T) {
	factory := testutil.ScriptedFactory(simpleReplies)
	cfg := session.Config{Locale: "en-us"}

	err := AssertConversation(context.Background(), factory, cfg, nil,
		Say("Hi", "Please enter text", `{"buttons":["Yes","No"]}`),
		Say("abc", "echo: abc"),
		Say("quit", "Form quit."),
	)
	require.NoError(t, err)

	err = AssertConversation(context.Background(), factory, cfg, nil,
		Say("Hi", "Please enter text"),
	)
	f := requireFailure(t, err, CodeOutputMismatch)
	assert.Equal(t, 0, f.Turn)
	assert.Contains(t, f.Error(), "diff")
}

func TestFailureError(t *testing.T) {
	f := &Failure{Code: CodeScriptDrift, Message: "scripted input differs", Script: "s", Turn: 2, Line: 9, Expected: `"a"`, Actual: `"b"`}
	msg := f.Error()
	assert.Contains(t, msg, "SCRIPT_DRIFT: scripted input differs (script=s, turn=2, line=9)")
	assert.Contains(t, msg, `expected: "a"`)

	assert.True(t, IsScriptDrift(f))
	assert.False(t, IsOutputMismatch(f))
	assert.False(t, IsTurnFailure(nil))
}
