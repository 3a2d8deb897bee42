package testutil

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
)

// Reply is the scripted response to one input. A non-empty Fail makes the
// turn fail with that message after Outputs are pushed.
type Reply struct {
	Outputs []session.Output
	Fail    string
}

// ScriptedBot is a deterministic bot for harness tests.
//
// Known inputs get their scripted Reply; anything else is echoed back as
// "echo: <input>". The bot's snapshot records the last input and the turn
// count.
type ScriptedBot struct {
	out     *session.Outbox
	replies map[string]Reply
	state   ir.IRObject
	turns   int
}

// Post implements session.Bot.
func (b *ScriptedBot) Post(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.turns++
	b.state["last"] = ir.IRString(text)
	b.state["turns"] = ir.IRInt(b.turns)

	reply, ok := b.replies[text]
	if !ok {
		b.out.Push(session.Text(fmt.Sprintf("echo: %s", text)))
		return nil
	}
	for _, o := range reply.Outputs {
		b.out.Push(o)
	}
	if reply.Fail != "" {
		return errors.New(reply.Fail)
	}
	return nil
}

// Snapshot implements session.Snapshotter.
func (b *ScriptedBot) Snapshot() any {
	return ir.CloneObject(b.state)
}

// ScriptedFactory returns a session.Factory building a ScriptedBot with the
// given replies. The initial state is taken from the session config.
func ScriptedFactory(replies map[string]Reply) session.Factory {
	return func(ctx context.Context, cfg session.Config) (session.Bot, *session.Outbox, error) {
		out := session.NewOutbox()
		bot := &ScriptedBot{
			out:     out,
			replies: replies,
			state:   ir.CloneObject(cfg.State),
		}
		return bot, out, nil
	}
}
