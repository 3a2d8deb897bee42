package session

import (
	"context"

	"github.com/roach88/convoscript/internal/ir"
)

// Bot is the conversational system under test.
//
// Post processes one complete user message. Replies are pushed to the
// Outbox the bot was built with; returning means the turn is finished. A
// returned error is the turn's failure and its message is what transcripts
// record.
type Bot interface {
	Post(ctx context.Context, text string) error
}

// Snapshotter is implemented by bots that can expose their current state.
// The value is canonically encoded into the transcript's State lines.
type Snapshotter interface {
	Snapshot() any
}

// EntityHint is a pre-recognized value offered to the bot before the first
// turn, e.g. an entity extracted by a language understanding service.
type EntityHint struct {
	Type   string `json:"type" yaml:"type"`
	Entity string `json:"entity" yaml:"entity"`
	Role   string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Config is everything a Factory needs to build a fresh bot.
type Config struct {
	Locale   string
	State    ir.IRObject
	Entities []EntityHint
	Options  map[string]any
}

// Factory builds one bot and the Outbox it replies into. It is called once
// per session; the bot must not be shared between sessions.
type Factory func(ctx context.Context, cfg Config) (Bot, *Outbox, error)
