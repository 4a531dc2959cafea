package filter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/operators"
)

// celComparisons maps comparison operators to CEL's binary operator functions.
var celComparisons = map[string]string{
	Eq.Name:     operators.Equals,
	Equals.Name: operators.Equals,
	Gt.Name:     operators.Greater,
	Gte.Name:    operators.GreaterEquals,
	Lt.Name:     operators.Less,
	Lte.Name:    operators.LessEquals,
	In.Name:     operators.In,
}

// celMethods maps string matching operators to CEL's string member functions.
var celMethods = map[string]string{
	Contains.Name: "contains",
	Starts.Name:   "startsWith",
	Ends.Name:     "endsWith",
}

// CEL renders e as a CEL expression, eg. `(age > 5 && name == "x")`.  Field paths
// are rendered as select expressions, so their root must be declared as a
// variable within any environment used to check the result.
func CEL(e Expression) (string, error) {
	sb := &strings.Builder{}
	if err := writeCEL(sb, e); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ParseCEL renders e and parses it within env, returning the parsed AST.  The
// expression is never evaluated.
func ParseCEL(env *cel.Env, e Expression) (*cel.Ast, error) {
	src, err := CEL(e)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(src)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return ast, nil
}

func writeCEL(sb *strings.Builder, e Expression) error {
	switch n := e.(type) {
	case *BinaryExpression:
		return writeCELComparison(sb, n)

	case *CompoundExpression:
		var fn string
		switch n.Operator.Name {
		case And.Name:
			fn = operators.LogicalAnd
		case Or.Name:
			fn = operators.LogicalOr
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedOperator, n.Operator.Name)
		}
		sym, _ := operators.FindReverseBinaryOperator(fn)

		sb.WriteByte('(')
		if err := writeCEL(sb, n.Left); err != nil {
			return err
		}
		sb.WriteString(" " + sym + " ")
		if err := writeCEL(sb, n.Right); err != nil {
			return err
		}
		sb.WriteByte(')')
		return nil

	case *UnaryExpression:
		if n.Operator.Name != Not.Name {
			return fmt.Errorf("%w: %s", ErrUnsupportedOperator, n.Operator.Name)
		}
		sym, _ := operators.FindReverse(operators.LogicalNot)
		sb.WriteString(sym + "(")
		if err := writeCEL(sb, n.Operand); err != nil {
			return err
		}
		sb.WriteByte(')')
		return nil

	case nil:
		return fmt.Errorf("%w: missing expression", ErrIncomplete)
	default:
		return fmt.Errorf("%w: %s is not a condition", ErrIncomplete, e)
	}
}

func writeCELComparison(sb *strings.Builder, b *BinaryExpression) error {
	field, ok := b.Left.(*Field)
	if !ok || field == nil {
		return fmt.Errorf("%w: %s has no field", ErrIncomplete, b)
	}
	val, ok := b.Right.(*Value)
	if !ok || val == nil {
		return fmt.Errorf("%w: %s has no value", ErrIncomplete, b)
	}

	path, err := celPath(field.Path)
	if err != nil {
		return err
	}

	if fn, ok := celComparisons[b.Operator.Name]; ok {
		sym, _ := operators.FindReverseBinaryOperator(fn)
		lit, err := celValue(val, fn == operators.In)
		if err != nil {
			return err
		}
		sb.WriteString(path + " " + sym + " " + lit)
		return nil
	}

	if method, ok := celMethods[b.Operator.Name]; ok {
		if _, isStr := val.Scalar.(string); val.IsList || !isStr {
			return fmt.Errorf("%w: %s requires a string, got %s", ErrInvalidOperand, b.Operator.Name, val)
		}
		lit, _ := celLiteral(val.Scalar)
		sb.WriteString(path + "." + method + "(" + lit + ")")
		return nil
	}

	if b.Operator.Name == Between.Name {
		if !val.IsList || len(val.List) != 2 {
			return fmt.Errorf("%w: between requires two values, got %s", ErrInvalidOperand, val)
		}
		lower, err := celLiteral(val.List[0])
		if err != nil {
			return err
		}
		upper, err := celLiteral(val.List[1])
		if err != nil {
			return err
		}
		gte, _ := operators.FindReverseBinaryOperator(operators.GreaterEquals)
		lte, _ := operators.FindReverseBinaryOperator(operators.LessEquals)
		and, _ := operators.FindReverseBinaryOperator(operators.LogicalAnd)
		sb.WriteString("(" + path + " " + gte + " " + lower + " " + and + " " + path + " " + lte + " " + upper + ")")
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedOperator, b.Operator.Name)
}

var celIdent = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

// celReserved holds CEL's keywords and reserved identifiers.
var celReserved = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "in": {},
	"as": {}, "break": {}, "const": {}, "continue": {}, "else": {},
	"for": {}, "function": {}, "if": {}, "import": {}, "let": {},
	"loop": {}, "package": {}, "namespace": {}, "return": {}, "var": {},
}

// celPath checks that every segment of a dotted field path is a plain CEL
// identifier.  Paths are written into the source as-is.
func celPath(path string) (string, error) {
	for _, seg := range strings.Split(path, ".") {
		if _, ok := celReserved[seg]; ok || !celIdent.MatchString(seg) {
			return "", fmt.Errorf("%w: field %q is not a valid CEL identifier", ErrInvalidOperand, path)
		}
	}
	return path, nil
}

// celValue renders a Value.  Lists always render as CEL lists;  in requires one
// even for a single scalar.
func celValue(v *Value, list bool) (string, error) {
	if !v.IsList && !list {
		return celLiteral(v.Scalar)
	}

	items := v.List
	if !v.IsList {
		items = []any{v.Scalar}
	}
	parts := make([]string, len(items))
	for n, item := range items {
		lit, err := celLiteral(item)
		if err != nil {
			return "", err
		}
		parts[n] = lit
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func celLiteral(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return strconv.Quote(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10) + "u", nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10) + "u", nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10) + "u", nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10) + "u", nil
	case uint64:
		return strconv.FormatUint(val, 10) + "u", nil
	case float32:
		return celFloat(float64(val))
	case float64:
		return celFloat(val)
	case time.Time:
		return "timestamp(" + strconv.Quote(val.Format(time.RFC3339Nano)) + ")", nil
	default:
		return "", fmt.Errorf("%w: cannot render %T as CEL", ErrInvalidOperand, v)
	}
}

func celFloat(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "double(" + strconv.Quote(strconv.FormatFloat(f, 'g', -1, 64)) + ")", nil
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		// CEL parses 3 as an int;  keep doubles as doubles.
		s += ".0"
	}
	return s, nil
}
