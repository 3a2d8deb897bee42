package transcript

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Line labels.
const (
	LabelFromUser      = "FromUser"
	LabelToUserText    = "ToUserText"
	LabelToUserButtons = "ToUserButtons"
	LabelException     = "Exception"
	LabelState         = "State"
)

// SiblingSuffix is inserted before the extension of a transcript path to
// name the file written when verification fails.
const SiblingSuffix = "-new"

// Header is the first record of every transcript. State and Entities are
// already canonically encoded.
type Header struct {
	Locale   string
	State    string
	Entities string
}

// Lines returns the header as the three lines written to disk.
func (h Header) Lines() [3]string {
	return [3]string{h.Locale, h.State, h.Entities}
}

// OutputKind tags an output record.
type OutputKind int

const (
	// KindText is a plain text reply.
	KindText OutputKind = iota + 1
	// KindStructured is a structured reply such as a set of buttons.
	KindStructured
)

// String returns the transcript label for the kind.
func (k OutputKind) String() string {
	switch k {
	case KindText:
		return LabelToUserText
	case KindStructured:
		return LabelToUserButtons
	default:
		return fmt.Sprintf("OutputKind(%d)", int(k))
	}
}

// KindForLabel maps a transcript label back to its output kind.
func KindForLabel(label string) (OutputKind, bool) {
	switch label {
	case LabelToUserText:
		return KindText, true
	case LabelToUserButtons:
		return KindStructured, true
	default:
		return 0, false
	}
}

// Output is one encoded output record.
type Output struct {
	Kind    OutputKind
	Payload string
}

// SiblingPath returns the path a re-recorded transcript is written to:
// same directory, SiblingSuffix inserted between stem and extension.
//
//	testdata/SimpleForm.script -> testdata/SimpleForm-new.script
func SiblingPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+SiblingSuffix+ext)
}
