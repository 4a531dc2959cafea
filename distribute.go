package filter

// Distribute prefixes field onto every leaf comparison within e, returning a new
// tree.  For example, distributing "address" into `(city == "x" || zip == "y")`
// returns `(address.city == "x" || address.zip == "y")`, and distributing it into
// a comparison with no field yet returns `address == ...`.
//
// A nil expression becomes a bare field reference:  the field was named but had
// no valid comparison.
func Distribute(field string, e Expression) Expression {
	switch n := e.(type) {
	case nil:
		return &Field{Path: field}
	case *CompoundExpression:
		return &CompoundExpression{
			Left:     Distribute(field, n.Left),
			Operator: n.Operator,
			Right:    Distribute(field, n.Right),
		}
	case *BinaryExpression:
		return &BinaryExpression{
			Left:     &Field{Path: field + PathSuffix(n)},
			Operator: n.Operator,
			Right:    n.Right,
		}
	case *UnaryExpression:
		return &UnaryExpression{
			Operand:  Distribute(field, n.Operand),
			Operator: n.Operator,
		}
	case *Field:
		return &Field{Path: joinPath(field, n.Path)}
	default:
		return e
	}
}

// PathSuffix returns the field path already applied to e, prefixed with ".", by
// walking down left operands.  It returns "" if no field has been applied.
//
// This allows nested field names to build dotted paths:  {a: {b: {c: {eq: 1}}}}
// produces the path "a.b.c".
func PathSuffix(e Expression) string {
	switch n := e.(type) {
	case *Field:
		if n == nil || n.Path == "" {
			return ""
		}
		return "." + n.Path
	case *BinaryExpression:
		if n == nil {
			return ""
		}
		return PathSuffix(n.Left)
	case *CompoundExpression:
		if n == nil {
			return ""
		}
		return PathSuffix(n.Left)
	case *UnaryExpression:
		if n == nil {
			return ""
		}
		return PathSuffix(n.Operand)
	default:
		return ""
	}
}

func joinPath(field, path string) string {
	if path == "" {
		return field
	}
	return field + "." + path
}
