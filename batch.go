package filter

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// BuildAll builds each filter concurrently using at most concurrency goroutines
// (runtime.NumCPU() when concurrency < 1).  Results are returned in input order.
// The first error cancels any remaining builds.
func BuildAll(ctx context.Context, b TreeBuilder, filters []map[string]any, concurrency int) ([]Expression, error) {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}

	results := make([]Expression, len(filters))

	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(concurrency).
		WithCancelOnError().
		WithFirstError()

	for n, f := range filters {
		n, f := n, f // per-iteration copies; go directive is pinned below 1.22
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			expr, err := b.Build(ctx, f)
			if err != nil {
				return fmt.Errorf("filter %d: %w", n, err)
			}
			results[n] = expr
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
