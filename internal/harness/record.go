package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/convoscript/internal/session"
	"github.com/roach88/convoscript/internal/transcript"
)

// Record runs script against a fresh bot and writes its transcript to path,
// replacing any existing file.
//
// The transcript is written to a temporary file in the same directory and
// renamed into place only when recording succeeds, so a failed run never
// leaves a partial transcript at path.
//
// Per-turn bot failures are recorded as Exception lines and do not stop the
// run; only transcript I/O faults and session errors abort it.
func (h *Harness) Record(ctx context.Context, path string, script Script) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return ioFailure(path, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err := h.RecordTo(ctx, f, script); err != nil {
		if fail, ok := AsFailure(err); ok && fail.Path == "" {
			fail.Path = path
		}
		return err
	}
	if err := f.Close(); err != nil {
		return ioFailure(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ioFailure(path, err)
	}
	h.logger().Info("transcript recorded", "scenario", script.Name, "path", path, "turns", len(script.Inputs))
	return nil
}

// RecordTo runs script against a fresh bot and writes its transcript to w.
func (h *Harness) RecordTo(ctx context.Context, w io.Writer, script Script) error {
	script = copyScript(script)

	header, err := h.Header(script)
	if err != nil {
		return err
	}

	tw := transcript.NewWriter(w)
	if err := tw.WriteHeader(header); err != nil {
		return ioFailure("", err)
	}

	err = session.With(ctx, h.Factory, script.Config(), h.logger(), func(s *session.Session) error {
		for i, input := range script.Inputs {
			if err := h.recordTurn(ctx, tw, s, script, i, input); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := tw.Flush(); err != nil {
		return ioFailure("", err)
	}
	return nil
}

func (h *Harness) recordTurn(ctx context.Context, tw *transcript.Writer, s *session.Session, script Script, i int, input string) error {
	log := h.logger().With("scenario", script.Name, "turn", i)

	enc, err := h.codec().Encode(input)
	if err != nil {
		return fmt.Errorf("turn %d: encode input: %w", i, err)
	}
	if err := tw.WriteInput(enc); err != nil {
		return ioFailure("", err)
	}

	res, err := s.RunTurn(ctx, input)
	if err != nil {
		return fmt.Errorf("turn %d: %w", i, err)
	}

	if res.Failed() {
		// The message is canonically encoded like any other string so a
		// multi-line failure still occupies a single Exception line.
		msg, err := h.codec().Encode(res.Message())
		if err != nil {
			return fmt.Errorf("turn %d: encode failure message: %w", i, err)
		}
		log.Debug("recorded failure", "input", input, "error", res.Message())
		if err := tw.WriteException(msg); err != nil {
			return ioFailure("", err)
		}
		return nil
	}

	outputs, err := h.encodeOutputs(res.Outputs)
	if err != nil {
		return fmt.Errorf("turn %d: %w", i, err)
	}
	if err := tw.WriteCount(len(outputs)); err != nil {
		return ioFailure("", err)
	}
	for _, o := range outputs {
		if err := tw.WriteOutput(o); err != nil {
			return ioFailure("", err)
		}
	}

	if h.Snapshot {
		state, err := h.encodeSnapshot(s)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}
		if err := tw.WriteState(state); err != nil {
			return ioFailure("", err)
		}
	}

	log.Debug("recorded turn", "input", input, "outputs", len(outputs))
	return nil
}
