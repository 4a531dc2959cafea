package filter

import (
	"context"
	"errors"
	"fmt"

	"github.com/ohler55/ojg/oj"
)

var ErrNotObject = errors.New("filter must be a JSON object")

// ParseJSON decodes a JSON filter into a filter map.  Integers decode as int64 and
// decimals as float64.
func ParseJSON(data []byte) (map[string]any, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrNotObject, v)
	}
	return m, nil
}

// BuildJSON parses a JSON filter and builds it with the given builder.
func BuildJSON(ctx context.Context, b TreeBuilder, data []byte) (Expression, error) {
	m, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, m)
}
