package formbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/convoscript/internal/formspec"
	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
)

// Button is one option of a structured choice prompt.
type Button struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Buttons is the structured payload sent with choice prompts.
type Buttons struct {
	Field   string   `json:"field"`
	Buttons []Button `json:"buttons"`
}

// Bot fills one form over a conversation.
//
// Bot is driven by a single session worker and is not safe for concurrent
// use.
type Bot struct {
	form *formspec.Form
	out  *session.Outbox
	opts Options
	tag  language.Tag
	p    *message.Printer

	values  ir.IRObject
	step    int   // index of the field being asked, -1 before start
	history []int // fields answered, most recent last
	done    bool
}

// New returns a bot for form that writes replies to out.
//
// cfg.State seeds field values (keys are field names); entity hints whose
// Type names a field pre-fill it when the entity parses as a valid value
// and the state does not already hold one.
func New(form *formspec.Form, cfg session.Config, out *session.Outbox) (*Bot, error) {
	if form == nil || len(form.Fields) == 0 {
		return nil, fmt.Errorf("formbot: form has no fields")
	}
	opts, err := DecodeOptions(cfg.Options)
	if err != nil {
		return nil, err
	}

	tag := matchLocale(cfg.Locale)
	b := &Bot{
		form:   form,
		out:    out,
		opts:   opts,
		tag:    tag,
		p:      newPrinter(tag),
		values: ir.CloneObject(cfg.State),
		step:   -1,
	}

	for _, hint := range cfg.Entities {
		field, ok := form.Field(hint.Type)
		if !ok {
			continue
		}
		if _, set := b.values[field.Name]; set {
			continue
		}
		if v, err := parseValue(field, hint.Entity, tag); err == nil {
			b.values[field.Name] = v
		}
	}
	return b, nil
}

// Factory returns a session.Factory building a fresh Bot for form.
func Factory(form *formspec.Form) session.Factory {
	return func(ctx context.Context, cfg session.Config) (session.Bot, *session.Outbox, error) {
		out := session.NewOutbox()
		b, err := New(form, cfg, out)
		if err != nil {
			return nil, nil, err
		}
		return b, out, nil
	}
}

// Snapshot implements session.Snapshotter.
func (b *Bot) Snapshot() any {
	return ir.CloneObject(b.values)
}

// Post implements session.Bot.
func (b *Bot) Post(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.done {
		b.say(msgAlreadyDone)
		return nil
	}
	if b.step < 0 {
		// The first message only starts the form.
		b.advance()
		return nil
	}

	field := b.form.Fields[b.step]
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "quit":
		return errors.New(b.p.Sprintf(msgQuit))
	case "help", "?":
		b.help(field)
		b.prompt()
		return nil
	case "status":
		b.status()
		b.prompt()
		return nil
	case "back":
		b.back()
		return nil
	case "skip":
		if !field.Optional {
			b.say(msgNotOptional, field.Label())
			b.prompt()
			return nil
		}
		b.accept(ir.IRNull{})
		return nil
	}

	v, err := parseValue(field, text, b.tag)
	if err != nil {
		b.say(msgInvalid, strings.TrimSpace(text), field.Label())
		b.prompt()
		return nil
	}
	b.accept(v)
	return nil
}

func (b *Bot) say(key string, args ...any) {
	b.out.Push(session.Text(b.p.Sprintf(key, args...)))
}

// accept stores v for the current field and moves on.
func (b *Bot) accept(v ir.IRValue) {
	b.values[b.form.Fields[b.step].Name] = v
	b.history = append(b.history, b.step)
	b.advance()
}

// advance moves to the first field without a value, or completes the form.
func (b *Bot) advance() {
	for i, f := range b.form.Fields {
		if _, set := b.values[f.Name]; !set {
			b.step = i
			b.prompt()
			return
		}
	}
	b.done = true
	b.say(msgComplete)
	if b.opts.StatusOnComplete {
		b.status()
	}
}

func (b *Bot) back() {
	if len(b.history) == 0 {
		b.say(msgNoBack)
		b.prompt()
		return
	}
	last := len(b.history) - 1
	b.step = b.history[last]
	b.history = b.history[:last]
	b.prompt()
}

// prompt asks for the current field.
func (b *Bot) prompt() {
	field := b.form.Fields[b.step]

	if v, set := b.values[field.Name]; set {
		b.say(msgCurrent, formatValue(v))
	}

	if field.Prompt != "" {
		b.out.Push(session.Text(field.Prompt))
		if field.Type == formspec.TypeChoice && b.opts.PromptStyle == PromptButtons {
			b.out.Push(session.Structured(b.buttons(field)))
		}
		return
	}

	if field.Type != formspec.TypeChoice {
		b.say(msgEnter, field.Label())
		return
	}

	if b.opts.PromptStyle == PromptText {
		numbered := make([]string, len(field.Choices))
		for i, c := range field.Choices {
			numbered[i] = strconv.Itoa(i+1) + ". " + c
		}
		b.say(msgSelectInline, field.Label(), strings.Join(numbered, ", "))
		return
	}
	b.say(msgSelect, field.Label())
	b.out.Push(session.Structured(b.buttons(field)))
}

func (b *Bot) buttons(field formspec.Field) Buttons {
	payload := Buttons{Field: field.Name, Buttons: make([]Button, len(field.Choices))}
	for i, c := range field.Choices {
		payload.Buttons[i] = Button{Title: c, Value: c}
	}
	return payload
}

func (b *Bot) help(field formspec.Field) {
	hint := b.typeHint(field)
	if field.Optional {
		b.say(msgHelp, hint)
		return
	}
	b.say(msgHelpRequired, hint)
}

func (b *Bot) typeHint(field formspec.Field) string {
	var hint string
	switch field.Type {
	case formspec.TypeInteger:
		hint = b.p.Sprintf(msgHintInteger)
	case formspec.TypeFloat:
		hint = b.p.Sprintf(msgHintFloat)
	case formspec.TypeDate:
		return b.p.Sprintf(msgHintDate)
	case formspec.TypeChoice:
		return b.p.Sprintf(msgHintChoice, strings.Join(field.Choices, ", "))
	default:
		return b.p.Sprintf(msgHintText)
	}
	if field.Min != nil && field.Max != nil {
		return b.p.Sprintf(msgHintRange, hint, formatBound(*field.Min), formatBound(*field.Max))
	}
	return hint
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// status lists every field with its value.
func (b *Bot) status() {
	lines := []string{b.p.Sprintf(msgStatus)}
	for _, f := range b.form.Fields {
		value := b.p.Sprintf(msgUnspecified)
		if v, set := b.values[f.Name]; set {
			if _, isNull := v.(ir.IRNull); isNull {
				value = b.p.Sprintf(msgNoPreference)
			} else {
				value = formatValue(v)
			}
		}
		lines = append(lines, f.Label()+": "+value)
	}
	b.out.Push(session.Text(strings.Join(lines, "\n")))
}
