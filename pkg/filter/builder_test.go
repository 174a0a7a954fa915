package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Misuse(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *Builder
		expected error
	}{
		{
			name:     "operator twice",
			build:    func() *Builder { return Where("a").Eq(1).Eq(2) },
			expected: ErrInvalidSequence,
		},
		{
			name:     "connector before first predicate",
			build:    func() *Builder { return Where("a").And("b") },
			expected: ErrInvalidSequence,
		},
		{
			name:     "connector while awaiting operator",
			build:    func() *Builder { return Where("a").Eq(1).Or("b").And("c") },
			expected: ErrInvalidSequence,
		},
		{
			name:     "empty in",
			build:    func() *Builder { return Where("a").In([]string{}) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "nil not in",
			build:    func() *Builder { return Where("a").NotIn(nil) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "scalar passed to in",
			build:    func() *Builder { return Where("a").In("x") },
			expected: ErrInvalidArgument,
		},
		{
			name:     "bytes passed to in",
			build:    func() *Builder { return Where("a").In([]byte("xy")) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "unsupported sequence element",
			build:    func() *Builder { return Where("a").In([]any{"x", true}) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "sequence passed to eq",
			build:    func() *Builder { return Where("a").Eq([]string{"x"}) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "bool value",
			build:    func() *Builder { return Where("a").Eq(true) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "nan",
			build:    func() *Builder { return Where("a").Gt(nan()) },
			expected: ErrInvalidArgument,
		},
		{
			name:     "empty attribute",
			build:    func() *Builder { return Where(" ") },
			expected: ErrInvalidArgument,
		},
		{
			name:     "empty connector attribute",
			build:    func() *Builder { return Where("a").Eq(1).And("") },
			expected: ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.build()

			require.ErrorIs(t, b.Err(), tt.expected)
			assert.ErrorIs(t, b.Err(), ErrMisuse)

			_, err := b.Render(true)
			assert.ErrorIs(t, err, tt.expected)

			_, err = b.Compile()
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestBuilder_MisuseIsSticky(t *testing.T) {
	b := Where("a").Eq(1).Eq(2)
	first := b.Err()
	require.ErrorIs(t, first, ErrInvalidSequence)

	// Valid calls after misuse change nothing.
	b.And("b").Eq(3)
	assert.Equal(t, first, b.Err())
	assert.Len(t, b.Predicates(), 1)

	_, err := b.Render(false)
	assert.Equal(t, first, err)
}

func TestBuilder_Predicates(t *testing.T) {
	b := Where("status").Eq("scheduled").Or("priority").In([]int{1, 2})

	predicates := b.Predicates()
	require.Len(t, predicates, 2)
	assert.Equal(t, "status", predicates[0].Attribute)
	assert.Equal(t, OpEq, predicates[0].Operator)
	assert.False(t, predicates[0].Value.IsSequence())
	assert.Equal(t, "scheduled", predicates[0].Value.String())

	assert.Equal(t, OpIn, predicates[1].Operator)
	assert.True(t, predicates[1].Value.IsSequence())
	assert.Equal(t, 2, predicates[1].Value.Len())
	assert.Equal(t, "priority IN 1,2", predicates[1].String())

	assert.Equal(t, []Connector{Or}, b.Connectors())

	// Returned slices are copies.
	predicates[0].Attribute = "changed"
	assert.Equal(t, "status", b.Predicates()[0].Attribute)
}

func TestBuilder_SequenceIsCopied(t *testing.T) {
	ids := []string{"a", "b"}
	b := Where("id").In(ids)
	ids[0] = "z"

	got, err := b.Render(true)
	require.NoError(t, err)
	assert.Equal(t, "id IN a,b", got)
}

func TestEntity_PrefixesBareAttributes(t *testing.T) {
	appointments := ForEntity("appointment")

	b := appointments.Where("status").Eq("scheduled").
		And("calendar.id").Eq(4).
		Or("title").Like("Check up")

	got, err := b.Render(true)
	require.NoError(t, err)
	assert.Equal(t, `appointment.status EQ scheduled AND calendar.id EQ 4 OR appointment.title LIKE "Check~up"`, got)

	// Plain builders never prefix.
	plain, err := Where("status").Eq("x").Render(true)
	require.NoError(t, err)
	assert.Equal(t, "status EQ x", plain)
}

func TestEntity_IsReusable(t *testing.T) {
	slots := ForEntity("slot")

	first := slots.Where("free").Eq(1)
	second := slots.Where("length").Gte(30)

	assert.Equal(t, "slot.free EQ 1", first.String())
	assert.Equal(t, "slot.length GTE 30", second.String())
}
