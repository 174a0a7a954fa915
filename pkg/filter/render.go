package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Render returns the filter in wire format.
//
// Predicates render as "<attribute> <OPERATOR> <value>" and are joined with
// their connectors by single spaces, in insertion order. An attribute still
// waiting for an operator is left out together with its connector. With
// urlEncode, whitespace inside quoted values becomes '~'. A nil builder
// renders as an empty filter.
func (b *Builder) Render(urlEncode bool) (string, error) {
	if b == nil {
		return "", ErrEmptyFilter
	}
	if b.err != nil {
		return "", b.err
	}
	if len(b.predicates) == 0 {
		return "", ErrEmptyFilter
	}

	var sb strings.Builder
	for i, p := range b.predicates {
		if i > 0 {
			sb.WriteByte(' ')
			sb.WriteString(string(b.connectors[i-1]))
			sb.WriteByte(' ')
		}
		sb.WriteString(p.String())
	}

	if !urlEncode {
		return sb.String(), nil
	}
	return encodeWhitespace(sb.String()), nil
}

// String returns the URL-encoded rendering, the form expected wherever a
// plain filter string is used. It panics if the builder was misused.
func (b *Builder) String() string {
	s, err := b.Render(true)
	if err != nil {
		panic(err)
	}
	return s
}

// encodeWhitespace replaces whitespace inside double-quoted spans with '~'.
// Inside quotes a backslash and the rune after it form one unit, so an
// escaped quote does not end the span. Bytes that are not valid UTF-8 are
// copied unchanged.
func encodeWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inQuotes := false
	escaped := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		unit := s[i : i+size]
		i += size

		switch {
		case escaped:
			escaped = false
		case inQuotes && r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case inQuotes && r != utf8.RuneError && unicode.IsSpace(r):
			unit = "~"
		}
		sb.WriteString(unit)
	}
	return sb.String()
}
