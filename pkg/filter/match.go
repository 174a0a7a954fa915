package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Matcher evaluates a filter locally against attribute maps, for example to
// re-check cached or streamed entities. It is safe for concurrent use.
//
// AND binds tighter than OR. LIKE is a case-insensitive substring test.
// Dotted attributes are looked up as a literal key first and then through
// nested maps.
type Matcher struct {
	source  string
	program *vm.Program
}

// Compile compiles the filter into a Matcher.
func (b *Builder) Compile() (*Matcher, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.predicates) == 0 {
		return nil, ErrEmptyFilter
	}

	var sb strings.Builder
	for i, p := range b.predicates {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(strings.ToLower(string(b.connectors[i-1])))
			sb.WriteString(" ")
		}
		sb.WriteString(exprPredicate(p))
	}
	source := sb.String()

	program, err := expr.Compile(source,
		expr.Env(helperEnv(nil)),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", source, err)
	}

	return &Matcher{source: source, program: program}, nil
}

// Match reports whether env satisfies the filter. Ordering comparisons on a
// missing or non-numeric attribute return an error.
func (m *Matcher) Match(env map[string]any) (bool, error) {
	result, err := expr.Run(m.program, helperEnv(env))
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}
	return result.(bool), nil
}

// Source returns the compiled expr-lang program text.
func (m *Matcher) Source() string {
	return m.source
}

// helperEnv builds the evaluation environment exposing attribute lookup and
// the like helper.
func helperEnv(attrs map[string]any) map[string]any {
	return map[string]any{
		"attr": func(path string) any {
			return lookup(attrs, path)
		},
		"like": like,
	}
}

func exprPredicate(p Predicate) string {
	attr := "attr(" + strconv.Quote(p.Attribute) + ")"

	switch p.Operator {
	case OpEq:
		return attr + " == " + exprLiteral(p.Value)
	case OpNotEq:
		return attr + " != " + exprLiteral(p.Value)
	case OpGt:
		return attr + " > " + exprLiteral(p.Value)
	case OpGte:
		return attr + " >= " + exprLiteral(p.Value)
	case OpLt:
		return attr + " < " + exprLiteral(p.Value)
	case OpLte:
		return attr + " <= " + exprLiteral(p.Value)
	case OpLike:
		return "like(" + attr + ", " + exprLiteral(p.Value) + ")"
	case OpNotLike:
		return "not like(" + attr + ", " + exprLiteral(p.Value) + ")"
	case OpIn:
		return "(" + attr + " in " + exprLiteral(p.Value) + ")"
	case OpNotIn:
		return "not (" + attr + " in " + exprLiteral(p.Value) + ")"
	default:
		return "false"
	}
}

func exprLiteral(v Value) string {
	parts := make([]string, len(v.items))
	for i, item := range v.items {
		if item.number {
			parts[i] = item.text
		} else {
			parts[i] = strconv.Quote(item.text)
		}
	}
	if v.sequence {
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return parts[0]
}

// lookup resolves path in attrs, trying the literal key before descending
// through nested maps on '.'.
func lookup(attrs map[string]any, path string) any {
	if attrs == nil {
		return nil
	}
	if v, ok := attrs[path]; ok {
		return v
	}

	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil
	}
	nested, ok := attrs[head].(map[string]any)
	if !ok {
		return nil
	}
	return lookup(nested, rest)
}

// like reports whether value contains pattern, ignoring case.
func like(value, pattern any) bool {
	if value == nil {
		return false
	}
	return strings.Contains(
		strings.ToLower(fmt.Sprint(value)),
		strings.ToLower(fmt.Sprint(pattern)),
	)
}

