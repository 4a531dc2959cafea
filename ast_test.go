package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpressionString(t *testing.T) {
	tests := []struct {
		expr     Expression
		expected string
	}{
		{&Field{Path: "a.b"}, "a.b"},
		{ScalarValue("x"), `"x"`},
		{ScalarValue(nil), "null"},
		{ScalarValue(1.5), "1.5"},
		{ScalarValue(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), `"2024-01-02T00:00:00Z"`},
		{ListValue(1, "a", nil), `[1, "a", null]`},
		{ListValue(), "[]"},
		{cmp("age", Gte, ScalarValue(1)), "age >= 1"},
		{&BinaryExpression{Operator: In, Right: ListValue(1, 2)}, "_ in [1, 2]"},
		{
			&CompoundExpression{
				Left:     cmp("a", Eq, ScalarValue(1)),
				Operator: Or,
				Right:    nil,
			},
			"(a == 1 || _)",
		},
		{&UnaryExpression{Operand: cmp("a", Lt, ScalarValue(1)), Operator: Not}, "!(a < 1)"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			require.Equal(t, test.expected, test.expr.String())
		})
	}
}

func TestIsCombinator(t *testing.T) {
	require.True(t, IsCombinator(cmp("a", Eq, ScalarValue(1))))
	require.True(t, IsCombinator(&CompoundExpression{Operator: And}))
	require.True(t, IsCombinator(&UnaryExpression{Operator: Not}))

	require.False(t, IsCombinator(nil))
	require.False(t, IsCombinator(&Field{Path: "a"}))
	require.False(t, IsCombinator(ScalarValue(1)))

	var b *BinaryExpression
	require.False(t, IsCombinator(b))
}

func TestListValue(t *testing.T) {
	v := ListValue()
	require.True(t, v.IsList)
	require.NotNil(t, v.List)
	require.Empty(t, v.List)
}
