package session

import "fmt"

// Kind tags an Output.
type Kind int

const (
	// KindText is a plain text reply.
	KindText Kind = iota + 1
	// KindStructured is a structured reply (buttons, cards, ...).
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Output is one message a bot sends back to the user.
// Exactly one of Text or Payload is meaningful, selected by Kind.
type Output struct {
	Kind    Kind
	Text    string
	Payload any
}

// Text returns a plain text Output.
func Text(s string) Output {
	return Output{Kind: KindText, Text: s}
}

// Structured returns a structured Output carrying payload.
func Structured(payload any) Output {
	return Output{Kind: KindStructured, Payload: payload}
}

// Value returns the value that is encoded into a transcript: the text for
// text outputs, the payload for structured ones.
func (o Output) Value() any {
	if o.Kind == KindText {
		return o.Text
	}
	return o.Payload
}
