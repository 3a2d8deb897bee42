package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
	"github.com/roach88/convoscript/internal/transcript"
)

// Script is everything needed to run one conversation: the bot
// configuration that forms the transcript header and the ordered inputs.
type Script struct {
	Name     string
	Locale   string
	State    ir.IRObject
	Entities []session.EntityHint
	Options  map[string]any
	Inputs   []string
}

// Config returns the session configuration for the script.
func (s Script) Config() session.Config {
	return session.Config{
		Locale:   s.Locale,
		State:    s.State,
		Entities: s.Entities,
		Options:  s.Options,
	}
}

// ExtraCheck validates the State line recorded after a successful turn.
// payload is the line's text after the "State:" label.
type ExtraCheck func(ctx context.Context, s *session.Session, payload string) error

// Harness records and verifies golden transcripts for bots built by Factory.
type Harness struct {
	Factory session.Factory
	Codec   ir.Codec
	Logger  *slog.Logger

	// Snapshot adds a State line after every successful turn holding the
	// bot's encoded snapshot. The bot must implement session.Snapshotter.
	Snapshot bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithCodec replaces the canonical codec.
func WithCodec(c ir.Codec) Option {
	return func(h *Harness) {
		h.Codec = c
	}
}

// WithLogger sets the logger used for turn-level diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.Logger = l
	}
}

// WithSnapshot enables State lines.
func WithSnapshot(enabled bool) Option {
	return func(h *Harness) {
		h.Snapshot = enabled
	}
}

// New returns a Harness for bots built by factory.
func New(factory session.Factory, opts ...Option) *Harness {
	h := &Harness{
		Factory: factory,
		Codec:   ir.Canonical{},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Harness) codec() ir.Codec {
	if h.Codec == nil {
		return ir.Canonical{}
	}
	return h.Codec
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Logger
}

// Header returns the transcript header for script.
func (h *Harness) Header(script Script) (transcript.Header, error) {
	c := h.codec()

	state, err := c.Encode(ir.CloneObject(script.State))
	if err != nil {
		return transcript.Header{}, fmt.Errorf("encode initial state: %w", err)
	}

	entities := script.Entities
	if entities == nil {
		entities = []session.EntityHint{}
	}
	hints, err := c.Encode(entities)
	if err != nil {
		return transcript.Header{}, fmt.Errorf("encode entity hints: %w", err)
	}

	return transcript.Header{Locale: script.Locale, State: state, Entities: hints}, nil
}

// encodeOutput renders a live output as the record the recorder writes.
func (h *Harness) encodeOutput(o session.Output) (transcript.Output, error) {
	switch o.Kind {
	case session.KindText:
		enc, err := h.codec().Encode(o.Text)
		if err != nil {
			return transcript.Output{}, fmt.Errorf("encode text output: %w", err)
		}
		return transcript.Output{Kind: transcript.KindText, Payload: enc}, nil
	case session.KindStructured:
		enc, err := h.codec().Encode(o.Payload)
		if err != nil {
			return transcript.Output{}, fmt.Errorf("encode structured output: %w", err)
		}
		return transcript.Output{Kind: transcript.KindStructured, Payload: enc}, nil
	default:
		return transcript.Output{}, fmt.Errorf("unknown output kind %v", o.Kind)
	}
}

func (h *Harness) encodeOutputs(outputs []session.Output) ([]transcript.Output, error) {
	encoded := make([]transcript.Output, 0, len(outputs))
	for i, o := range outputs {
		e, err := h.encodeOutput(o)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		encoded = append(encoded, e)
	}
	return encoded, nil
}

// encodeSnapshot returns the encoded State payload for the session.
func (h *Harness) encodeSnapshot(s *session.Session) (string, error) {
	snap, ok := s.Snapshot()
	if !ok {
		return "", fmt.Errorf("snapshot requested but bot does not implement session.Snapshotter")
	}
	enc, err := h.codec().Encode(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return enc, nil
}

func copyScript(script Script) Script {
	script.State = ir.CloneObject(script.State)
	script.Entities = slices.Clone(script.Entities)
	script.Inputs = slices.Clone(script.Inputs)
	return script
}
