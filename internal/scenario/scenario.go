package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/roach88/convoscript/internal/harness"
	"github.com/roach88/convoscript/internal/ir"
	"github.com/roach88/convoscript/internal/session"
)

// DefaultLocale is used when a scenario names none.
const DefaultLocale = "en-us"

// TranscriptExt is the extension of default transcript names.
const TranscriptExt = ".script"

// Scenario is one scripted conversation.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario covers.
	Description string `yaml:"description,omitempty"`

	// Form is the path to the CUE form definition.
	Form string `yaml:"form"`

	// Transcript is the golden transcript path.
	Transcript string `yaml:"transcript,omitempty"`

	Locale   string               `yaml:"locale,omitempty"`
	Snapshot bool                 `yaml:"snapshot,omitempty"`
	State    map[string]any       `yaml:"state,omitempty"`
	Entities []session.EntityHint `yaml:"entities,omitempty"`
	Options  map[string]any       `yaml:"options,omitempty"`

	// Inputs are the user messages, in order.
	Inputs []string `yaml:"inputs"`

	// Dir is the directory of the scenario file. Relative paths resolve
	// against it.
	Dir string `yaml:"-"`
}

// Load reads, schema-checks and decodes a scenario file.
func Load(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	if problems := ValidateBytes(data); len(problems) > 0 {
		return nil, &ValidationError{File: file, Problems: problems}
	}

	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if s.Locale == "" {
		s.Locale = DefaultLocale
	}
	if _, err := language.Parse(s.Locale); err != nil {
		return nil, &ValidationError{File: file, Problems: []string{fmt.Sprintf("/locale: %v", err)}}
	}
	if s.Transcript == "" {
		s.Transcript = s.Name + TranscriptExt
	}
	s.Dir = filepath.Dir(file)

	return &s, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. When pattern is non-empty only scenarios whose name matches it
// (path.Match syntax) are returned. Load errors for individual files are
// joined; successfully loaded scenarios are still returned.
func LoadDir(dir, pattern string) ([]*Scenario, error) {
	var files []string
	for _, glob := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, glob))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	slices.Sort(files)

	var (
		scenarios []*Scenario
		errs      []error
		names     = make(map[string]string)
	)
	for _, f := range files {
		s, err := Load(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pattern != "" {
			ok, err := path.Match(pattern, s.Name)
			if err != nil {
				return nil, fmt.Errorf("bad filter %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		if prev, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate scenario name %q (also in %s)", f, s.Name, prev))
			continue
		}
		names[s.Name] = f
		scenarios = append(scenarios, s)
	}
	return scenarios, errors.Join(errs...)
}

// FormPath returns the form path resolved against the scenario directory.
func (s *Scenario) FormPath() string {
	return s.resolve(s.Form)
}

// TranscriptPath returns the transcript path resolved against the scenario
// directory.
func (s *Scenario) TranscriptPath() string {
	return s.resolve(s.Transcript)
}

func (s *Scenario) resolve(p string) string {
	if filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// Script converts the scenario into a harness script.
func (s *Scenario) Script() (harness.Script, error) {
	state := ir.IRObject{}
	if len(s.State) > 0 {
		v, err := ir.FromGo(s.State)
		if err != nil {
			return harness.Script{}, fmt.Errorf("scenario %s: state: %w", s.Name, err)
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return harness.Script{}, fmt.Errorf("scenario %s: state must be an object", s.Name)
		}
		state = obj
	}

	return harness.Script{
		Name:     s.Name,
		Locale:   s.Locale,
		State:    state,
		Entities: slices.Clone(s.Entities),
		Options:  s.Options,
		Inputs:   slices.Clone(s.Inputs),
	}, nil
}
