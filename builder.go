package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// DefaultMaxDepth is the deepest map nesting accepted by a Builder unless
// WithMaxDepth is used.
const DefaultMaxDepth = 32

var (
	ErrMaxDepth       = errors.New("input too deeply nested")
	ErrInvalidShape   = errors.New("invalid filter shape")
	ErrInvalidOperand = errors.New("invalid operand")
)

// TreeBuilder builds expression trees from filter maps.
type TreeBuilder interface {
	// Build returns the expression for the given filter map.  A nil expression
	// with a nil error means the filter is absent or invalid, eg. an empty map.
	Build(ctx context.Context, filter map[string]any) (Expression, error)
}

// Option configures a Builder.
type Option func(b *Builder)

// WithClassifier sets the operator table used to tell operators from field names.
func WithClassifier(c Classifier) Option {
	return func(b *Builder) {
		b.classifier = c
	}
}

// WithMaxDepth limits map nesting.  Values below one are ignored.
func WithMaxDepth(depth int) Option {
	return func(b *Builder) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

// WithNormalizer replaces NormalizeDate as the hook applied to comparison values.
func WithNormalizer(n Normalizer) Option {
	return func(b *Builder) {
		if n != nil {
			b.normalize = n
		}
	}
}

// WithStrict makes invalid filter shapes fail with ErrInvalidShape or
// ErrInvalidOperand, instead of producing no expression at that position.
func WithStrict(strict bool) Option {
	return func(b *Builder) {
		b.strict = strict
	}
}

// WithLogger sets the logger used to report ignored filter shapes at debug level.
// The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBuilder returns a Builder using DefaultRegistry unless configured otherwise.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxDepth:  DefaultMaxDepth,
		normalize: NormalizeDate,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.classifier == nil {
		b.classifier = DefaultRegistry()
	}
	return b
}

// Builder turns filter maps into expression trees.  A Builder holds no per-call
// state and is safe for concurrent use.
type Builder struct {
	classifier Classifier
	maxDepth   int
	normalize  Normalizer
	strict     bool
	log        *slog.Logger
}

// Build builds a filter map with a default Builder.
func Build(filter map[string]any) (Expression, error) {
	return NewBuilder().Build(context.Background(), filter)
}

// Build returns the expression tree for filter.  It fails with ErrMaxDepth when
// filter nests deeper than the configured depth, and in strict mode with
// ErrInvalidShape or ErrInvalidOperand.
func (b *Builder) Build(ctx context.Context, filter map[string]any) (Expression, error) {
	return b.build(ctx, filter, 1)
}

func (b *Builder) build(ctx context.Context, filter map[string]any, depth int) (Expression, error) {
	if depth > b.maxDepth {
		return nil, fmt.Errorf("%w: exceeds max depth of %d", ErrMaxDepth, b.maxDepth)
	}

	if len(filter) != 1 {
		return b.invalid(ctx, ErrInvalidShape, "filter must contain exactly one key", "keys", keys(filter))
	}

	var (
		key string
		val any
	)
	for key, val = range filter {
	}

	op, err := b.classifier.Classify(key)
	if err != nil {
		// Anything that isn't an operator is a field name.
		return b.buildField(ctx, key, val, depth)
	}

	switch op.Kind {
	case KindCompound:
		return b.buildCompound(ctx, op, val, depth)
	case KindBinary:
		return b.buildBinary(ctx, op, val)
	case KindUnary:
		return b.buildUnary(ctx, op, val, depth)
	default:
		return b.buildField(ctx, key, val, depth)
	}
}

// buildCompound folds each sub-filter into a left-associative chain using a
// stack.  Sub-filters which don't produce a combinator are pushed as-is and are
// never combined;  only the top of the stack is returned, so an invalid entry
// drops everything folded before it.
func (b *Builder) buildCompound(ctx context.Context, op Operator, val any, depth int) (Expression, error) {
	a := argOf(val)
	if a.kind != argList {
		return b.invalid(ctx, ErrInvalidOperand, "compound operator requires a list", "operator", op.Name)
	}

	stack := []Expression{}
	for _, item := range a.list {
		sub := argOf(item)
		if sub.kind != argMap && b.strict {
			return nil, fmt.Errorf("%w: %s operands must be filter maps", ErrInvalidOperand, op.Name)
		}

		right, err := b.build(ctx, sub.m, depth+1)
		if err != nil {
			return nil, err
		}

		if n := len(stack); n > 0 && IsCombinator(right) && IsCombinator(stack[n-1]) {
			stack[n-1] = &CompoundExpression{
				Left:     stack[n-1],
				Operator: op,
				Right:    right,
			}
			continue
		}
		stack = append(stack, right)
	}

	if len(stack) == 0 {
		return b.invalid(ctx, ErrInvalidOperand, "compound operator has no operands", "operator", op.Name)
	}
	return stack[len(stack)-1], nil
}

// buildBinary returns a comparison with its value set.  The field is set by the
// enclosing field name.
func (b *Builder) buildBinary(ctx context.Context, op Operator, val any) (Expression, error) {
	a := argOf(val)

	var right *Value
	switch a.kind {
	case argList:
		items := make([]any, len(a.list))
		for n, item := range a.list {
			items[n] = b.normalize(item)
		}
		right = ListValue(items...)
	case argMap:
		return b.invalid(ctx, ErrInvalidOperand, "binary operator requires a scalar or list", "operator", op.Name)
	default:
		right = ScalarValue(b.normalize(a.scalar))
	}

	return &BinaryExpression{
		Operator: op,
		Right:    right,
	}, nil
}

func (b *Builder) buildUnary(ctx context.Context, op Operator, val any, depth int) (Expression, error) {
	a := argOf(val)
	if a.kind != argMap && b.strict {
		return nil, fmt.Errorf("%w: %s operand must be a filter map", ErrInvalidOperand, op.Name)
	}

	operand, err := b.build(ctx, a.m, depth+1)
	if err != nil {
		return nil, err
	}
	return &UnaryExpression{
		Operand:  operand,
		Operator: op,
	}, nil
}

// buildField builds the filter nested under a field name and applies the name to
// it.  A compound child means several comparisons on the same field, so the name
// is distributed to every leaf.
func (b *Builder) buildField(ctx context.Context, field string, val any, depth int) (Expression, error) {
	a := argOf(val)
	if a.kind != argMap && b.strict {
		return nil, fmt.Errorf("%w: field %q must hold a filter map", ErrInvalidOperand, field)
	}

	child, err := b.build(ctx, a.m, depth+1)
	if err != nil {
		return nil, err
	}
	return Distribute(field, child), nil
}

// invalid reports a shape problem.  Lenient builders log it and return no
// expression.
func (b *Builder) invalid(ctx context.Context, kind error, msg string, attrs ...any) (Expression, error) {
	if b.strict {
		return nil, fmt.Errorf("%w: %s", kind, msg)
	}
	b.log.DebugContext(ctx, "ignoring invalid filter: "+msg, attrs...)
	return nil, nil
}

func keys(m map[string]any) []string {
	k := make([]string, 0, len(m))
	for key := range m {
		k = append(k, key)
	}
	sort.Strings(k)
	return k
}
