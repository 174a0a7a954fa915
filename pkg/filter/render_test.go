package filter

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_RoundTrip(t *testing.T) {
	single := Where("status").Eq("scheduled")
	got, err := single.Render(true)
	require.NoError(t, err)
	assert.Equal(t, "status EQ scheduled", got)

	combined := Where("status").Eq("scheduled").And("name").Like("John Doe")

	encoded, err := combined.Render(true)
	require.NoError(t, err)
	assert.Equal(t, `status EQ scheduled AND name LIKE "John~Doe"`, encoded)

	readable, err := combined.Render(false)
	require.NoError(t, err)
	assert.Equal(t, `status EQ scheduled AND name LIKE "John Doe"`, readable)
}

func TestRender_Operators(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		expected string
	}{
		{"eq", Where("a").Eq("x"), "a EQ x"},
		{"not eq", Where("a").NotEq("x"), "a NOT_EQ x"},
		{"like", Where("a").Like("x"), "a LIKE x"},
		{"not like", Where("a").NotLike("x"), "a NOT_LIKE x"},
		{"gt", Where("a").Gt(1), "a GT 1"},
		{"gte", Where("a").Gte(1), "a GTE 1"},
		{"lt", Where("a").Lt(1), "a LT 1"},
		{"lte", Where("a").Lte(1), "a LTE 1"},
		{"in", Where("a").In([]string{"x"}), "a IN x"},
		{"not in", Where("a").NotIn([]int{1, 2}), "a NOT_IN 1,2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.builder.Render(true)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRender_Values(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		expected string
	}{
		{"string sequence", Where("s").In([]string{"a", "b", "c"}), "s IN a,b,c"},
		{"any sequence", Where("s").In([]any{"a", 2, 3.5}), "s IN a,2,3.5"},
		{"array", Where("s").In([2]int64{7, 8}), "s IN 7,8"},
		{"quoted sequence element", Where("s").In([]string{"a b", "c"}), `s IN "a~b",c`},
		{"integer", Where("n").Eq(42), "n EQ 42"},
		{"negative", Where("n").Gt(-3), "n GT -3"},
		{"unsigned", Where("n").Eq(uint8(7)), "n EQ 7"},
		{"float", Where("n").Lt(2.5), "n LT 2.5"},
		{"whole float", Where("n").Lt(3.0), "n LT 3"},
		{"small float", Where("n").Gt(0.000001), "n GT 0.000001"},
		{"large float", Where("n").Gt(1e21), "n GT 1000000000000000000000"},
		{"float32", Where("n").Eq(float32(0.1)), "n EQ 0.1"},
		{"json integer", Where("n").Eq(json.Number("12")), "n EQ 12"},
		{"json float", Where("n").Eq(json.Number("1.25e2")), "n EQ 125"},
		{"numeric string stays bare", Where("n").Eq("42"), "n EQ 42"},
		{"date", Where("start").Gte("2026-03-14T09:00:00Z"), "start GTE 2026-03-14T09:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.builder.Render(true)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRender_Quoting(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		readable string
		encoded  string
	}{
		{"bare", "scheduled", `v EQ scheduled`, `v EQ scheduled`},
		{"empty", "", `v EQ ""`, `v EQ ""`},
		{"space", "a b", `v EQ "a b"`, `v EQ "a~b"`},
		{"tab and newline", "a\tb\nc", "v EQ \"a\tb\nc\"", `v EQ "a~b~c"`},
		{"comma", "a,b", `v EQ "a,b"`, `v EQ "a,b"`},
		{"tilde", "a~b", `v EQ "a~b"`, `v EQ "a~b"`},
		{"double quote", `say "hi"`, `v EQ "say \"hi\""`, `v EQ "say~\"hi\""`},
		{"backslash", `C:\dir`, `v EQ "C:\\dir"`, `v EQ "C:\\dir"`},
		{"trailing backslash", `a\`, `v EQ "a\\"`, `v EQ "a\\"`},
		{"escaped quote then space", `x" y`, `v EQ "x\" y"`, `v EQ "x\"~y"`},
		{"backslash then space", `x\ y`, `v EQ "x\\ y"`, `v EQ "x\\~y"`},
		{"unicode space", "a\u00a0b", "v EQ \"a\u00a0b\"", `v EQ "a~b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Where("v").Eq(tt.value)

			readable, err := b.Render(false)
			require.NoError(t, err)
			assert.Equal(t, tt.readable, readable)

			encoded, err := b.Render(true)
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, encoded)
		})
	}
}

func TestRender_EncodingKeepsSpacesOutsideQuotes(t *testing.T) {
	b := Where("name").Eq("Ann Lee").Or("name").Eq("Bo").And("room").In([]string{"A 1", "B"})

	got, err := b.Render(true)
	require.NoError(t, err)
	assert.Equal(t, `name EQ "Ann~Lee" OR name EQ Bo AND room IN "A~1",B`, got)
}

func TestRender_PreservesInsertionOrder(t *testing.T) {
	b := Where("c").Eq(3).Or("a").Eq(1).And("b").Eq(2).Or("a").Eq(1)

	got, err := b.Render(false)
	require.NoError(t, err)
	assert.Equal(t, "c EQ 3 OR a EQ 1 AND b EQ 2 OR a EQ 1", got)
}

func TestRender_DropsDanglingAttribute(t *testing.T) {
	b := Where("status").Eq("scheduled").And("name")

	got, err := b.Render(true)
	require.NoError(t, err)
	assert.Equal(t, "status EQ scheduled", got)

	// Completing the attribute later brings the connector back.
	got, err = b.Like("Ann").Render(true)
	require.NoError(t, err)
	assert.Equal(t, "status EQ scheduled AND name LIKE Ann", got)
}

func TestRender_EmptyFilter(t *testing.T) {
	_, err := Where("status").Render(true)
	require.ErrorIs(t, err, ErrEmptyFilter)
	assert.ErrorIs(t, err, ErrMisuse)
}

func TestRender_NilBuilder(t *testing.T) {
	var b *Builder

	_, err := b.Render(true)
	require.ErrorIs(t, err, ErrEmptyFilter)
	assert.NoError(t, b.Err())
}

func TestRender_IsRepeatable(t *testing.T) {
	b := Where("name").Eq("John Doe")

	first, err := b.Render(true)
	require.NoError(t, err)
	second, err := b.Render(true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestString(t *testing.T) {
	b := Where("status").Eq("scheduled").And("name").Like("John Doe")

	assert.Equal(t, `status EQ scheduled AND name LIKE "John~Doe"`, b.String())
	assert.Equal(t, `filter=status EQ scheduled AND name LIKE "John~Doe"`, fmt.Sprintf("filter=%s", b))
}

func TestString_PanicsOnMisuse(t *testing.T) {
	assert.PanicsWithError(t, ErrEmptyFilter.Error(), func() {
		_ = Where("status").String()
	})
}

func TestRender_EncodingKeepsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		expected string
	}{
		{"unquoted", Where("name").Eq("a\xffb"), "name EQ a\xffb"},
		{"quoted", Where("name").Eq("a \xffb"), "name EQ \"a~\xffb\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, err := tt.builder.Render(false)
			require.NoError(t, err)
			encoded, err := tt.builder.Render(true)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, encoded)
			if tt.name == "unquoted" {
				assert.Equal(t, plain, encoded)
			}
		})
	}
}

func TestEncodeWhitespace(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`a b`, `a b`},
		{`"a b"`, `"a~b"`},
		{`x "a b" y "c d"`, `x "a~b" y "c~d"`},
		{`"a\" b" c`, `"a\"~b" c`},
		{`"a\\" b`, `"a\\" b`},
		{`"unterminated b`, `"unterminated~b`},
		{"a\xffb", "a\xffb"},
		{"\"a \xff b\"", "\"a~\xff~b\""},
		{"\"\\\xff \"", "\"\\\xff~\""},
		{"\"a\u00a0b\"", "\"a~b\""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, encodeWhitespace(tt.input))
		})
	}
}
