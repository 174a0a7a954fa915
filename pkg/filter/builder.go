package filter

import (
	"fmt"
	"strings"
)

// state is either awaitingOperator or awaitingConnector.
type state interface {
	isState()
}

// awaitingOperator holds the attribute of the predicate under construction
// and the connector that will join it to the previous predicate, if any.
type awaitingOperator struct {
	connector Connector
	attribute string
}

// awaitingConnector means the last predicate is complete.
type awaitingConnector struct{}

func (awaitingOperator) isState()  {}
func (awaitingConnector) isState() {}

// Builder incrementally constructs one filter expression.
//
// Calls alternate between an operator (Eq, In, ...) and a connector (And,
// Or). The first misuse is recorded and returned by Err and Render; every
// later call is a no-op. A Builder is not safe for concurrent use.
type Builder struct {
	entity     string
	predicates []Predicate
	connectors []Connector
	state      state
	err        error
}

// Entity creates builders whose bare attribute names are prefixed with an
// entity name, e.g. "status" becomes "appointment.status".
type Entity struct {
	name string
}

// ForEntity returns an Entity for name.
func ForEntity(name string) Entity {
	return Entity{name: name}
}

// Where starts a filter on attr, applying the entity prefix.
func (e Entity) Where(attr string) *Builder {
	return newBuilder(e.name, attr)
}

// Where starts a filter on attr.
func Where(attr string) *Builder {
	return newBuilder("", attr)
}

func newBuilder(entity, attr string) *Builder {
	b := &Builder{entity: entity}
	b.expectOperator("", attr)
	return b
}

// Eq finalizes the current predicate as attr EQ value.
func (b *Builder) Eq(value any) *Builder { return b.scalar(OpEq, value) }

// NotEq finalizes the current predicate as attr NOT_EQ value.
func (b *Builder) NotEq(value any) *Builder { return b.scalar(OpNotEq, value) }

// Like finalizes the current predicate as attr LIKE value.
func (b *Builder) Like(value any) *Builder { return b.scalar(OpLike, value) }

// NotLike finalizes the current predicate as attr NOT_LIKE value.
func (b *Builder) NotLike(value any) *Builder { return b.scalar(OpNotLike, value) }

// Gt finalizes the current predicate as attr GT value.
func (b *Builder) Gt(value any) *Builder { return b.scalar(OpGt, value) }

// Gte finalizes the current predicate as attr GTE value.
func (b *Builder) Gte(value any) *Builder { return b.scalar(OpGte, value) }

// Lt finalizes the current predicate as attr LT value.
func (b *Builder) Lt(value any) *Builder { return b.scalar(OpLt, value) }

// Lte finalizes the current predicate as attr LTE value.
func (b *Builder) Lte(value any) *Builder { return b.scalar(OpLte, value) }

// In finalizes the current predicate as attr IN values. values must be a
// non-empty slice of strings or numbers.
func (b *Builder) In(values any) *Builder { return b.sequence(OpIn, values) }

// NotIn finalizes the current predicate as attr NOT_IN values.
func (b *Builder) NotIn(values any) *Builder { return b.sequence(OpNotIn, values) }

// And starts the next predicate on attr, joined with AND.
func (b *Builder) And(attr string) *Builder { return b.connect(And, attr) }

// Or starts the next predicate on attr, joined with OR.
func (b *Builder) Or(attr string) *Builder { return b.connect(Or, attr) }

// Err returns the first misuse error, if any.
func (b *Builder) Err() error {
	if b == nil {
		return nil
	}
	return b.err
}

// Predicates returns a copy of the finalized predicates.
func (b *Builder) Predicates() []Predicate {
	return append([]Predicate(nil), b.predicates...)
}

// Connectors returns a copy of the connectors between finalized predicates.
func (b *Builder) Connectors() []Connector {
	return append([]Connector(nil), b.connectors...)
}

func (b *Builder) scalar(op Operator, value any) *Builder {
	if b.err != nil {
		return b
	}
	v, err := scalarValue(value)
	if err != nil {
		return b.fail(fmt.Errorf("%s: %w", op, err))
	}
	return b.finalize(op, v)
}

func (b *Builder) sequence(op Operator, values any) *Builder {
	if b.err != nil {
		return b
	}
	v, err := sequenceValue(values)
	if err != nil {
		return b.fail(fmt.Errorf("%s: %w", op, err))
	}
	return b.finalize(op, v)
}

// finalize moves the current predicate into the expression.
func (b *Builder) finalize(op Operator, v Value) *Builder {
	current, ok := b.state.(awaitingOperator)
	if !ok {
		return b.fail(fmt.Errorf("%w: %s called without an attribute; use And or Or first", ErrInvalidSequence, op))
	}

	if current.connector != "" {
		b.connectors = append(b.connectors, current.connector)
	}
	b.predicates = append(b.predicates, Predicate{
		Attribute: current.attribute,
		Operator:  op,
		Value:     v,
	})
	b.state = awaitingConnector{}
	return b
}

func (b *Builder) connect(c Connector, attr string) *Builder {
	if b.err != nil {
		return b
	}
	if _, ok := b.state.(awaitingConnector); !ok {
		return b.fail(fmt.Errorf("%w: %s(%q) called before the current predicate has an operator", ErrInvalidSequence, c, attr))
	}
	b.expectOperator(c, attr)
	return b
}

func (b *Builder) expectOperator(c Connector, attr string) {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		b.fail(fmt.Errorf("%w: attribute must not be empty", ErrInvalidArgument))
		return
	}
	b.state = awaitingOperator{connector: c, attribute: b.qualify(attr)}
}

// qualify prefixes attr with the entity name unless it already names one.
func (b *Builder) qualify(attr string) string {
	if b.entity == "" || strings.Contains(attr, ".") {
		return attr
	}
	return b.entity + "." + attr
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}
