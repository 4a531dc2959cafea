package filter

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrIncomplete          = errors.New("incomplete expression")
)

// ColumnMapper maps a dotted field path to a SQL column expression.
type ColumnMapper func(path string) string

type sqlOptions struct {
	column      ColumnMapper
	placeholder sq.PlaceholderFormat
}

type SQLOption func(o *sqlOptions)

// WithColumnMapper replaces QuoteColumn as the mapping from field paths to columns.
func WithColumnMapper(m ColumnMapper) SQLOption {
	return func(o *sqlOptions) {
		o.column = m
	}
}

// WithPlaceholder sets the placeholder format used by ToSQL, eg. sq.Dollar for
// Postgres.  The default is sq.Question.
func WithPlaceholder(p sq.PlaceholderFormat) SQLOption {
	return func(o *sqlOptions) {
		o.placeholder = p
	}
}

// QuoteColumn quotes each segment of a dotted path, eg. address.city becomes
// "address"."city".
func QuoteColumn(path string) string {
	parts := strings.Split(path, ".")
	for n, p := range parts {
		parts[n] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// ToSQL renders e as a WHERE clause body and its arguments.
func ToSQL(e Expression, opts ...SQLOption) (string, []any, error) {
	o := newSQLOptions(opts)
	cond, err := o.render(e)
	if err != nil {
		return "", nil, err
	}
	query, args, err := cond.ToSql()
	if err != nil {
		return "", nil, err
	}
	query, err = o.placeholder.ReplacePlaceholders(query)
	if err != nil {
		return "", nil, err
	}
	return query, args, nil
}

// SQL converts e into a squirrel condition, for use within sq.SelectBuilder.Where.
func SQL(e Expression, opts ...SQLOption) (sq.Sqlizer, error) {
	return newSQLOptions(opts).render(e)
}

func newSQLOptions(opts []SQLOption) *sqlOptions {
	o := &sqlOptions{
		column:      QuoteColumn,
		placeholder: sq.Question,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *sqlOptions) render(e Expression) (sq.Sqlizer, error) {
	switch n := e.(type) {
	case *BinaryExpression:
		return o.comparison(n)

	case *CompoundExpression:
		left, err := o.render(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := o.render(n.Right)
		if err != nil {
			return nil, err
		}
		switch n.Operator.Name {
		case And.Name:
			return sq.And{left, right}, nil
		case Or.Name:
			return sq.Or{left, right}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, n.Operator.Name)

	case *UnaryExpression:
		if n.Operator.Name != Not.Name {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, n.Operator.Name)
		}
		operand, err := o.render(n.Operand)
		if err != nil {
			return nil, err
		}
		query, args, err := operand.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+query+")", args...), nil

	case nil:
		return nil, fmt.Errorf("%w: missing expression", ErrIncomplete)
	default:
		return nil, fmt.Errorf("%w: %s is not a condition", ErrIncomplete, e)
	}
}

func (o *sqlOptions) comparison(b *BinaryExpression) (sq.Sqlizer, error) {
	field, ok := b.Left.(*Field)
	if !ok || field == nil {
		return nil, fmt.Errorf("%w: %s has no field", ErrIncomplete, b)
	}
	val, ok := b.Right.(*Value)
	if !ok || val == nil {
		return nil, fmt.Errorf("%w: %s has no value", ErrIncomplete, b)
	}

	col := o.column(field.Path)

	switch b.Operator.Name {
	case Eq.Name, Equals.Name:
		if val.IsList {
			return sq.Eq{col: val.List}, nil
		}
		return sq.Eq{col: val.Scalar}, nil
	case In.Name:
		if !val.IsList {
			return sq.Eq{col: []any{val.Scalar}}, nil
		}
		return sq.Eq{col: val.List}, nil
	case Gt.Name:
		return sq.Gt{col: val.Scalar}, nil
	case Gte.Name:
		return sq.GtOrEq{col: val.Scalar}, nil
	case Lt.Name:
		return sq.Lt{col: val.Scalar}, nil
	case Lte.Name:
		return sq.LtOrEq{col: val.Scalar}, nil
	case Between.Name:
		if !val.IsList || len(val.List) != 2 {
			return nil, fmt.Errorf("%w: between requires two values, got %s", ErrInvalidOperand, val)
		}
		return sq.Expr(col+" BETWEEN ? AND ?", val.List[0], val.List[1]), nil
	case Contains.Name:
		return like(col, val, "%", "%")
	case Starts.Name:
		return like(col, val, "", "%")
	case Ends.Name:
		return like(col, val, "%", "")
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, b.Operator.Name)
}

// likeEscape is the escape character named in each LIKE's ESCAPE clause.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, `%`, likeEscape+`%`, `_`, likeEscape+`_`)

func like(col string, val *Value, prefix, suffix string) (sq.Sqlizer, error) {
	str, ok := val.Scalar.(string)
	if val.IsList || !ok {
		return nil, fmt.Errorf("%w: pattern must be a string, got %s", ErrInvalidOperand, val)
	}
	return sq.Expr(col+" LIKE ? ESCAPE '"+likeEscape+"'", prefix+likeEscaper.Replace(str)+suffix), nil
}
