package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Expression is a node within a filter tree.  The set of nodes is closed:  consumers
// should type switch over *Field, *Value, *BinaryExpression, *CompoundExpression and
// *UnaryExpression.
//
// Nodes are never mutated once built.  Rewrites, such as distributing a field name
// into a compound expression, always create new nodes.
type Expression interface {
	// String returns an infix representation of the expression, eg.
	// `(age > 5 && name == "x")`.
	String() string

	expression()
}

// Field references a field by its dotted path, eg. "address.city".
type Field struct {
	Path string
}

// Value is the literal a field is compared against.  Multi-valued operators
// such as in or between hold their operands within List.
type Value struct {
	Scalar any
	List   []any
	// IsList is true when the filter specified a collection, even if it was empty.
	IsList bool
}

// ScalarValue returns a single-valued literal.
func ScalarValue(v any) *Value {
	return &Value{Scalar: v}
}

// ListValue returns a multi-valued literal.
func ListValue(v ...any) *Value {
	if v == nil {
		v = []any{}
	}
	return &Value{List: v, IsList: true}
}

// BinaryExpression compares a field (Left) against a value (Right).  Left is nil
// until the enclosing field name has been applied.
type BinaryExpression struct {
	Left     Expression
	Operator Operator
	Right    Expression
}

// CompoundExpression combines two sub-expressions with a compound operator such as
// and/or.  N-ary input is folded into a left-associative chain of compound
// expressions.
type CompoundExpression struct {
	Left     Expression
	Operator Operator
	Right    Expression
}

// UnaryExpression applies a single-operand operator, eg. not, to a sub-expression.
type UnaryExpression struct {
	Operand  Expression
	Operator Operator
}

func (*Field) expression()              {}
func (*Value) expression()              {}
func (*BinaryExpression) expression()   {}
func (*CompoundExpression) expression() {}
func (*UnaryExpression) expression()    {}

func (f *Field) String() string {
	return f.Path
}

func (v *Value) String() string {
	if !v.IsList {
		return literalString(v.Scalar)
	}
	items := make([]string, len(v.List))
	for n, item := range v.List {
		items[n] = literalString(item)
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (b *BinaryExpression) String() string {
	return operandString(b.Left) + " " + b.Operator.Symbol + " " + operandString(b.Right)
}

func (c *CompoundExpression) String() string {
	return "(" + operandString(c.Left) + " " + c.Operator.Symbol + " " + operandString(c.Right) + ")"
}

func (u *UnaryExpression) String() string {
	return u.Operator.Symbol + "(" + operandString(u.Operand) + ")"
}

// IsCombinator returns true if the expression is a binary, compound or unary
// expression.  Only combinators take part in compound folding.
func IsCombinator(e Expression) bool {
	switch n := e.(type) {
	case *BinaryExpression:
		return n != nil
	case *CompoundExpression:
		return n != nil
	case *UnaryExpression:
		return n != nil
	default:
		return false
	}
}

// operandString renders absent operands as "_" so that incomplete comparisons
// are still printable.
func operandString(e Expression) string {
	if e == nil {
		return "_"
	}
	return e.String()
}

func literalString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case time.Time:
		return strconv.Quote(val.Format(time.RFC3339Nano))
	default:
		return fmt.Sprintf("%v", val)
	}
}
