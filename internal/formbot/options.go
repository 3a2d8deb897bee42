package formbot

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Prompt styles for choice fields.
const (
	PromptButtons = "buttons"
	PromptText    = "text"
)

// Options tune the bot's behavior. They come from the loose option map of
// a scenario.
type Options struct {
	// PromptStyle is "buttons" (a text prompt plus a structured button
	// list) or "text" (choices listed inline).
	PromptStyle string `mapstructure:"prompt_style"`

	// StatusOnComplete appends the status summary to the completion
	// message.
	StatusOnComplete bool `mapstructure:"status_on_complete"`
}

// DefaultOptions returns the options used when a scenario sets none.
func DefaultOptions() Options {
	return Options{PromptStyle: PromptButtons}
}

// DecodeOptions decodes raw into Options on top of the defaults. Unknown
// keys are an error.
func DecodeOptions(raw map[string]any) (Options, error) {
	opts := DefaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Options{}, fmt.Errorf("options decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}

	switch opts.PromptStyle {
	case PromptButtons, PromptText:
	default:
		return Options{}, fmt.Errorf("decode options: prompt_style must be %q or %q, got %q", PromptButtons, PromptText, opts.PromptStyle)
	}
	return opts, nil
}
