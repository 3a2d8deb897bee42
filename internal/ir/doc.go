// Package ir provides the canonical value model used for transcripts.
//
// Every value that ends up in a transcript (session state, entity hints,
// structured outputs, failure messages) is converted to an IRValue and
// rendered with MarshalCanonical. The rendering is deterministic and never
// contains a raw newline, so one value always occupies exactly one line.
//
// Key design constraints:
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Strings are written byte-exact; no Unicode normalization is applied
//   - Floats are allowed but must be finite; they always render with a
//     decimal point or exponent so they decode back to IRFloat
//   - ir imports nothing internal
package ir
