package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Operator is a predicate comparison operator as it appears on the wire.
type Operator string

// Supported operators.
const (
	OpEq      Operator = "EQ"
	OpNotEq   Operator = "NOT_EQ"
	OpLike    Operator = "LIKE"
	OpNotLike Operator = "NOT_LIKE"
	OpIn      Operator = "IN"
	OpNotIn   Operator = "NOT_IN"
	OpGt      Operator = "GT"
	OpGte     Operator = "GTE"
	OpLt      Operator = "LT"
	OpLte     Operator = "LTE"
)

// Connector joins two predicates.
type Connector string

// Supported connectors.
const (
	And Connector = "AND"
	Or  Connector = "OR"
)

// Predicate is one finalized attribute/operator/value comparison.
type Predicate struct {
	Attribute string
	Operator  Operator
	Value     Value
}

// String renders the predicate without URL encoding.
func (p Predicate) String() string {
	return p.Attribute + " " + string(p.Operator) + " " + p.Value.String()
}

// scalar is a single string or number. Numbers keep their decimal text.
type scalar struct {
	text   string
	number bool
}

// Value is an immutable predicate value: a string, a number, or a sequence
// of either.
type Value struct {
	items    []scalar
	sequence bool
}

// IsSequence reports whether the value is a sequence (In/NotIn).
func (v Value) IsSequence() bool {
	return v.sequence
}

// Len returns the number of elements, 1 for scalars.
func (v Value) Len() int {
	return len(v.items)
}

// String renders the value in wire format: numbers as decimal text, strings
// bare or quoted, sequence elements joined by a bare comma.
func (v Value) String() string {
	parts := make([]string, len(v.items))
	for i, item := range v.items {
		parts[i] = item.render()
	}
	return strings.Join(parts, ",")
}

func (s scalar) render() string {
	if s.number || !needsQuoting(s.text) {
		return s.text
	}
	return quote(s.text)
}

// needsQuoting reports whether a string must be wrapped in double quotes.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '~' || r == '"' || r == '\\'
	})
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

// scalarValue converts a string or number to a Value.
func scalarValue(v any) (Value, error) {
	s, err := toScalar(v)
	if err != nil {
		return Value{}, err
	}
	return Value{items: []scalar{s}}, nil
}

// sequenceValue converts a non-empty slice or array of strings and numbers to
// a sequence Value.
func sequenceValue(v any) (Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return Value{}, fmt.Errorf("%w: expected a sequence, got %T", ErrInvalidArgument, v)
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return Value{}, fmt.Errorf("%w: expected a sequence, got %T", ErrInvalidArgument, v)
	}
	if rv.Len() == 0 {
		return Value{}, fmt.Errorf("%w: sequence must not be empty", ErrInvalidArgument)
	}

	items := make([]scalar, rv.Len())
	for i := range items {
		s, err := toScalar(rv.Index(i).Interface())
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = s
	}
	return Value{items: items, sequence: true}, nil
}

func toScalar(v any) (scalar, error) {
	switch val := v.(type) {
	case string:
		return scalar{text: val}, nil
	case int:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int8:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int16:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int32:
		return number(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return number(strconv.FormatInt(val, 10)), nil
	case uint:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint8:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint16:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint32:
		return number(strconv.FormatUint(uint64(val), 10)), nil
	case uint64:
		return number(strconv.FormatUint(val, 10)), nil
	case float32:
		return floatScalar(float64(val), 32)
	case float64:
		return floatScalar(val, 64)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return number(strconv.FormatInt(i, 10)), nil
		}
		f, err := val.Float64()
		if err != nil {
			return scalar{}, fmt.Errorf("%w: invalid number %q", ErrInvalidArgument, val)
		}
		return floatScalar(f, 64)
	default:
		return scalar{}, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
	}
}

func floatScalar(f float64, bitSize int) (scalar, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return scalar{}, fmt.Errorf("%w: non-finite number %v", ErrInvalidArgument, f)
	}
	return number(strconv.FormatFloat(f, 'f', -1, bitSize)), nil
}

func number(text string) scalar {
	return scalar{text: text, number: true}
}
