package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden records script in memory and compares the transcript
// against testdata/golden/{script.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
//
// Returns an error if recording fails. A transcript that differs from the
// golden file fails t through goldie.
func RunWithGolden(t *testing.T, h *Harness, script Script) error {
	t.Helper()

	var buf bytes.Buffer
	if err := h.RecordTo(context.Background(), &buf, script); err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, script.Name, buf.Bytes())
	return nil
}
