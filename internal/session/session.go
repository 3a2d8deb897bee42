package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/convoscript/internal/ir"
)

// ErrClosed is returned by RunTurn after Close.
var ErrClosed = errors.New("session closed")

// TurnResult is the outcome of one turn: either the ordered outputs (Ok) or
// the bot's failure (Err). Outputs is always empty when Err is set.
type TurnResult struct {
	Outputs []Output
	Err     error
}

// Failed reports whether the bot failed the turn.
func (r TurnResult) Failed() bool {
	return r.Err != nil
}

// Message returns the failure message, or "" for a successful turn.
func (r TurnResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type turnRequest struct {
	ctx   context.Context
	text  string
	reply chan error
}

// Session is one live conversation: a bot, its Outbox and the worker
// goroutine that runs the bot.
//
// Thread-safety: RunTurn, Snapshot and Close may be called from any
// goroutine; turns are serialized so at most one is in flight.
type Session struct {
	bot    Bot
	out    *Outbox
	cfg    Config
	logger *slog.Logger

	reqs chan turnRequest
	quit chan struct{}
	done chan struct{}

	turnMu    sync.Mutex // one turn (or snapshot) at a time
	turns     int
	broken    error
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open builds a bot through factory and starts the session worker.
//
// The factory receives a private deep copy of cfg.State, so bots may mutate
// their state freely without affecting the caller or other sessions.
func Open(ctx context.Context, factory Factory, cfg Config, logger *slog.Logger) (*Session, error) {
	if factory == nil {
		return nil, fmt.Errorf("open session: nil factory")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg.State = ir.CloneObject(cfg.State)
	cfg.Entities = slices.Clone(cfg.Entities)

	bot, out, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if bot == nil || out == nil {
		return nil, fmt.Errorf("open session: factory returned nil bot or outbox")
	}

	s := &Session{
		bot:    bot,
		out:    out,
		cfg:    cfg,
		logger: logger,
		reqs:   make(chan turnRequest),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.loop()

	logger.Debug("session opened", "locale", cfg.Locale, "entities", len(cfg.Entities))
	return s, nil
}

// With opens a session, runs fn with it and closes it on every exit path.
// A close error is reported only when fn succeeded.
func With(ctx context.Context, factory Factory, cfg Config, logger *slog.Logger, fn func(*Session) error) (err error) {
	s, err := Open(ctx, factory, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}

// loop is the single goroutine that ever calls into the bot.
func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.reqs:
			req.reply <- s.post(req.ctx, req.text)
		}
	}
}

func (s *Session) post(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.bot.Post(ctx, text)
}

// RunTurn sends text to the bot as one message and waits for the turn to
// finish.
//
// On success the Outbox is drained completely and its contents returned in
// push order. If the bot fails, the failure is returned in the TurnResult
// and anything it pushed before failing is discarded, so no partial output
// leaks into the next turn.
//
// The error return is reserved for the session itself: a closed session or
// a context that ended while the turn was in flight. In the latter case the
// bot may still be running, so the session refuses further turns.
func (s *Session) RunTurn(ctx context.Context, text string) (TurnResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	if s.closed {
		return TurnResult{}, ErrClosed
	}
	if s.broken != nil {
		return TurnResult{}, fmt.Errorf("session unusable after interrupted turn: %w", s.broken)
	}

	req := turnRequest{ctx: ctx, text: text, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	}

	var postErr error
	select {
	case postErr = <-req.reply:
	case <-ctx.Done():
		s.broken = ctx.Err()
		return TurnResult{}, ctx.Err()
	}

	turn := s.turns
	s.turns++

	if postErr != nil {
		if discarded := s.out.DrainAll(); len(discarded) > 0 {
			s.logger.Debug("discarded outputs of failed turn", "turn", turn, "outputs", len(discarded))
		}
		s.logger.Debug("turn failed", "turn", turn, "error", postErr)
		return TurnResult{Outputs: []Output{}, Err: postErr}, nil
	}

	outputs := s.out.DrainAll()
	s.logger.Debug("turn completed", "turn", turn, "outputs", len(outputs))
	return TurnResult{Outputs: outputs}, nil
}

// Snapshot returns the bot's current state if it implements Snapshotter.
func (s *Session) Snapshot() (any, bool) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	snap, ok := s.bot.(Snapshotter)
	if !ok {
		return nil, false
	}
	return snap.Snapshot(), true
}

// Config returns the configuration the bot was built with.
func (s *Session) Config() Config {
	return s.cfg
}

// Turns returns the number of completed turns.
func (s *Session) Turns() int {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	return s.turns
}

// Close stops the worker, closes the Outbox and closes the bot if it
// implements io.Closer. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.turnMu.Lock()
		s.closed = true
		broken := s.broken
		s.turnMu.Unlock()

		close(s.quit)
		if broken == nil {
			// The worker is idle between turns; wait so the bot is not
			// closed underneath a running Post.
			<-s.done
		}
		s.out.Close()

		if c, ok := s.bot.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.closeErr = fmt.Errorf("close bot: %w", err)
			}
		}
		s.logger.Debug("session closed", "turns", s.turns)
	})
	return s.closeErr
}
