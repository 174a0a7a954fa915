package filter

import (
	"errors"
	"fmt"
)

// ErrMisuse is the root of all builder misuse errors. Misuse is a programming
// error and is never retried.
var ErrMisuse = errors.New("filter builder misuse")

var (
	// ErrInvalidSequence is returned when a method is called in the wrong state,
	// such as two operators in a row or a connector before any predicate.
	ErrInvalidSequence = fmt.Errorf("%w: invalid call sequence", ErrMisuse)

	// ErrInvalidArgument is returned for unusable values: empty attributes,
	// empty or non-sequence In/NotIn arguments, unsupported value types.
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrMisuse)

	// ErrEmptyFilter is returned when rendering a filter without predicates.
	ErrEmptyFilter = fmt.Errorf("%w: empty filter", ErrMisuse)
)
