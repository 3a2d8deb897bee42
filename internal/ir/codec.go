package ir

import (
	"fmt"
	"strings"
)

// Codec turns values into their single-line textual form and back.
//
// Encode must be deterministic: equal values always produce byte-identical
// text. Decode(Encode(v)) must yield a value equal to v.
type Codec interface {
	Encode(v any) (string, error)
	Decode(text string) (IRValue, error)
}

// Canonical is the default Codec, backed by MarshalCanonical.
type Canonical struct{}

// Encode renders v as canonical JSON.
func (Canonical) Encode(v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses canonical (or any valid) JSON text into an IRValue.
func (Canonical) Decode(text string) (IRValue, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty value")
	}
	return decodeJSON([]byte(text))
}

// DecodeString decodes text that must hold a JSON string.
func DecodeString(c Codec, text string) (string, error) {
	v, err := c.Decode(text)
	if err != nil {
		return "", err
	}
	s, ok := v.(IRString)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return string(s), nil
}
