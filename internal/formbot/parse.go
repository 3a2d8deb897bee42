package formbot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/convoscript/internal/formspec"
	"github.com/roach88/convoscript/internal/ir"
)

// dateLayout is how dates are stored in the form state.
const dateLayout = "2006-01-02"

var dateLayouts = map[language.Tag][]string{
	language.English: {"1/2/2006", "2006-01-02", "January 2, 2006", "Jan 2, 2006"},
	language.French:  {"2/1/2006", "2006-01-02"},
}

// parseValue converts user text into the stored value for field.
func parseValue(field formspec.Field, text string, tag language.Tag) (ir.IRValue, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty value")
	}

	switch field.Type {
	case formspec.TypeText:
		return ir.IRString(text), nil

	case formspec.TypeInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, err
		}
		if err := checkRange(field, float64(n)); err != nil {
			return nil, err
		}
		return ir.IRInt(n), nil

	case formspec.TypeFloat:
		if tag == language.French {
			text = strings.Replace(text, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("not a finite number")
		}
		if err := checkRange(field, f); err != nil {
			return nil, err
		}
		return ir.IRFloat(f), nil

	case formspec.TypeChoice:
		return parseChoice(field.Choices, text)

	case formspec.TypeDate:
		for _, layout := range dateLayouts[tag] {
			if t, err := time.Parse(layout, text); err == nil {
				return ir.IRString(t.Format(dateLayout)), nil
			}
		}
		return nil, fmt.Errorf("unrecognized date")

	default:
		return nil, fmt.Errorf("unknown field type %q", field.Type)
	}
}

func checkRange(field formspec.Field, v float64) error {
	if field.Min != nil && v < *field.Min {
		return fmt.Errorf("below minimum")
	}
	if field.Max != nil && v > *field.Max {
		return fmt.Errorf("above maximum")
	}
	return nil
}

// parseChoice accepts a 1-based option number, an option name in any case,
// or an unambiguous prefix of one. Input and options are compared in NFC
// form, so a decomposed accent still selects a precomposed option.
func parseChoice(choices []string, text string) (ir.IRValue, error) {
	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(choices) {
			return ir.IRString(choices[n-1]), nil
		}
		return nil, fmt.Errorf("no option %d", n)
	}

	lower := strings.ToLower(norm.NFC.String(text))
	var match string
	matches := 0
	for _, c := range choices {
		lc := strings.ToLower(norm.NFC.String(c))
		if lc == lower {
			return ir.IRString(c), nil
		}
		if strings.HasPrefix(lc, lower) {
			match = c
			matches++
		}
	}
	if matches == 1 {
		return ir.IRString(match), nil
	}
	return nil, fmt.Errorf("no matching option")
}

// formatValue renders a stored value for status and current-value lines.
func formatValue(v ir.IRValue) string {
	switch x := v.(type) {
	case ir.IRString:
		return string(x)
	case ir.IRInt:
		return strconv.FormatInt(int64(x), 10)
	case ir.IRFloat:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case ir.IRBool:
		return strconv.FormatBool(bool(x))
	default:
		enc, err := ir.Canonical{}.Encode(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return enc
	}
}
