package filter

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, len(DefaultOperators), r.Len())

	tests := []struct {
		key  string
		kind Kind
	}{
		{"and", KindCompound},
		{"or", KindCompound},
		{"not", KindUnary},
		{"eq", KindBinary},
		{"equals", KindBinary},
		{"gt", KindBinary},
		{"gte", KindBinary},
		{"lt", KindBinary},
		{"lte", KindBinary},
		{"in", KindBinary},
		{"between", KindBinary},
		{"contains", KindBinary},
		{"starts", KindBinary},
		{"ends", KindBinary},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			op, err := r.Classify(test.key)
			require.NoError(t, err)
			require.Equal(t, test.key, op.Name)
			require.Equal(t, test.kind, op.Kind)
			require.NotEmpty(t, op.Symbol)
		})
	}

	t.Run("It fails on unknown keys", func(t *testing.T) {
		for _, key := range []string{"", "age", "AND", "eq "} {
			_, err := r.Classify(key)
			require.ErrorIs(t, err, ErrUnknownOperator, key)
		}
	})

	t.Run("It lists operators by name", func(t *testing.T) {
		ops := r.Operators()
		require.Len(t, ops, len(DefaultOperators))
		for i := 1; i < len(ops); i++ {
			require.Less(t, ops[i-1].Name, ops[i].Name)
		}
	})
}

func TestRegistry_Register(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	require.Equal(t, 0, r.Len())

	t.Run("It rejects invalid operators", func(t *testing.T) {
		require.ErrorIs(t, r.Register(Operator{Kind: KindBinary}), ErrInvalidOperator)
		require.ErrorIs(t, r.Register(Operator{Name: "x"}), ErrInvalidOperator)
		require.ErrorIs(t, r.Register(Operator{Name: "x", Kind: Kind(42)}), ErrInvalidOperator)

		_, err := NewRegistry(Eq, Operator{Name: "bad"})
		require.ErrorIs(t, err, ErrInvalidOperator)
	})

	t.Run("It defaults the symbol to the name", func(t *testing.T) {
		require.NoError(t, r.Register(Operator{Name: "like", Kind: KindBinary}))
		op, err := r.Classify("like")
		require.NoError(t, err)
		require.Equal(t, "like", op.Symbol)
	})

	t.Run("It replaces existing operators", func(t *testing.T) {
		require.NoError(t, r.Register(Operator{Name: "like", Symbol: "~", Kind: KindBinary}))
		op, err := r.Classify("like")
		require.NoError(t, err)
		require.Equal(t, "~", op.Symbol)
		require.Equal(t, 1, r.Len())
	})

	t.Run("It is safe for concurrent use", func(t *testing.T) {
		wg := sync.WaitGroup{}
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = r.Register(Operator{Name: "like", Symbol: "~", Kind: KindBinary})
			}()
			go func() {
				defer wg.Done()
				_, _ = r.Classify("like")
			}()
		}
		wg.Wait()
	})
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindCompound, KindBinary, KindUnary} {
		parsed, err := ParseKind(strings.ToUpper(k.String()))
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	_, err := ParseKind("ternary")
	require.ErrorIs(t, err, ErrInvalidOperator)
	require.Equal(t, "invalid", KindInvalid.String())
}

func TestLoadRegistry(t *testing.T) {
	t.Run("It loads a standalone table", func(t *testing.T) {
		r, err := LoadRegistry(strings.NewReader(`
operators:
  - name: all
    symbol: "&&"
    kind: compound
  - name: like
    symbol: "~"
    kind: binary
  - name: none
    kind: unary
`))
		require.NoError(t, err)
		require.Equal(t, 3, r.Len())

		op, err := r.Classify("like")
		require.NoError(t, err)
		require.Equal(t, Operator{Name: "like", Symbol: "~", Kind: KindBinary}, op)

		op, err = r.Classify("none")
		require.NoError(t, err)
		require.Equal(t, Operator{Name: "none", Symbol: "none", Kind: KindUnary}, op)

		_, err = r.Classify("eq")
		require.ErrorIs(t, err, ErrUnknownOperator)
	})

	t.Run("It extends the default operators", func(t *testing.T) {
		r, err := LoadRegistry(strings.NewReader(`
extend: true
operators:
  - name: like
    kind: binary
  - name: eq
    symbol: "="
    kind: binary
`))
		require.NoError(t, err)
		require.Equal(t, len(DefaultOperators)+1, r.Len())

		op, err := r.Classify("eq")
		require.NoError(t, err)
		require.Equal(t, "=", op.Symbol)

		expr, err := NewBuilder(WithClassifier(r)).Build(context.Background(), m{"and": []any{
			m{"name": m{"like": "a"}},
			m{"age": m{"eq": 1}},
		}})
		require.NoError(t, err)
		require.Equal(t, `(name like "a" && age = 1)`, expr.String())
	})

	t.Run("It fails on invalid kinds", func(t *testing.T) {
		_, err := LoadRegistry(strings.NewReader(`
operators:
  - name: like
    kind: sideways
`))
		require.ErrorIs(t, err, ErrInvalidOperator)
	})

	t.Run("It fails on unknown fields", func(t *testing.T) {
		_, err := LoadRegistry(strings.NewReader(`
operators:
  - name: like
    kind: binary
    arity: 2
`))
		require.Error(t, err)
	})
}
