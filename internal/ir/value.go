package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing constrained value types.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray, and IRObject implement it.
type IRValue interface {
	irValue()
}

// IRNull is an explicit null. Plain Go nil is rejected by the encoder; IRNull
// is how a caller opts in to null deliberately.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a finite floating point value.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's native string order is UTF-8 and differs for supplementary characters.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := decodeJSON(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	*obj = o
	return nil
}

// MarshalJSON renders the object canonically.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case IRObject:
		return CloneObject(val)
	default:
		return v
	}
}

// CloneObject returns a deep copy of obj. A nil object clones to an empty one.
func CloneObject(obj IRObject) IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = Clone(v)
	}
	return out
}

// Equal reports whether a and b have identical canonical renderings.
// Values that cannot be rendered are never equal.
func Equal(a, b IRValue) bool {
	ab, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// FromGo converts an arbitrary Go value into an IRValue.
//
// IR values, primitives, []any and map[string]any are converted directly.
// Anything else (structs, typed slices) goes through encoding/json first so
// that json struct tags decide the shape.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden: use ir.IRNull explicitly")
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case float64:
		return newFloat(val)
	case float32:
		return newFloat(float64(val))
	case bool:
		return IRBool(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convert %T: %w", v, err)
		}
		return decodeJSON(data)
	}
}

func newFloat(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v is not representable", f)
	}
	return IRFloat(f), nil
}

// decodeJSON parses JSON into an IRValue. JSON null becomes IRNull so that
// values written by other tools still round-trip.
func decodeJSON(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return convertDecoded(raw)
}

func convertDecoded(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid number %s: %w", s, err)
			}
			return newFloat(f)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := convertDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := convertDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
