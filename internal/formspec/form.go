package formspec

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// FieldType is the kind of value a field accepts.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeInteger FieldType = "integer"
	TypeFloat   FieldType = "float"
	TypeChoice  FieldType = "choice"
	TypeDate    FieldType = "date"
)

// Field is one question of a form.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Prompt      string    `json:"prompt,omitempty"`
	Description string    `json:"description,omitempty"`
	Optional    bool      `json:"optional"`
	Choices     []string  `json:"choices,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
}

// Label returns the description used in prompts: Description if set,
// otherwise the field name split at case changes and lowercased
// ("SomeChoices" -> "some choices").
func (f Field) Label() string {
	if f.Description != "" {
		return f.Description
	}
	var b strings.Builder
	for i, r := range f.Name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		if r == '_' {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Form is a compiled form definition.
type Form struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the field with the given name.
func (f *Form) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// CompileError is a form definition error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile compiles the form declared in a CUE file.
func LoadFile(path string) (*Form, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}
	return CompileString(string(src), path)
}

// CompileString compiles the top-level "form" value of CUE source.
// filename is used in error positions.
func CompileString(src, filename string) (*Form, error) {
	ctx := cuecontext.New()

	root := ctx.CompileString(src, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := root.LookupPath(cue.ParsePath("form"))
	if !v.Exists() {
		return nil, &CompileError{Field: "form", Message: "form is required", Pos: root.Pos()}
	}
	return Compile(v)
}

// Compile validates v against the form schema and decodes it.
func Compile(v cue.Value) (*Form, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("form schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Form")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var form Form
	if err := unified.Decode(&form); err != nil {
		return nil, formatCUEError(err)
	}

	if err := validateForm(&form, v); err != nil {
		return nil, err
	}
	return &form, nil
}

// validateForm checks the rules the schema cannot express.
func validateForm(form *Form, v cue.Value) error {
	if len(form.Fields) == 0 {
		return &CompileError{Field: "fields", Message: "at least one field is required", Pos: v.Pos()}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	seen := make(map[string]bool, len(form.Fields))
	for i, f := range form.Fields {
		pos := fieldsVal.LookupPath(cue.MakePath(cue.Index(i))).Pos()
		path := fmt.Sprintf("fields[%d]", i)

		if seen[f.Name] {
			return &CompileError{Field: path, Message: fmt.Sprintf("duplicate field %q", f.Name), Pos: pos}
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeChoice:
			if len(f.Choices) == 0 {
				return &CompileError{Field: path, Message: "choice field needs at least one choice", Pos: pos}
			}
			opts := make(map[string]bool, len(f.Choices))
			for _, c := range f.Choices {
				key := strings.ToLower(c)
				if opts[key] {
					return &CompileError{Field: path, Message: fmt.Sprintf("duplicate choice %q", c), Pos: pos}
				}
				opts[key] = true
			}
		default:
			if len(f.Choices) > 0 {
				return &CompileError{Field: path, Message: "choices are only allowed on choice fields", Pos: pos}
			}
		}

		if (f.Min != nil || f.Max != nil) && f.Type != TypeInteger && f.Type != TypeFloat {
			return &CompileError{Field: path, Message: "min/max are only allowed on numeric fields", Pos: pos}
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return &CompileError{Field: path, Message: "min is greater than max", Pos: pos}
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
