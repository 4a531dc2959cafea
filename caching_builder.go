package filter

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/karlseguin/ccache/v2"
	"github.com/ohler55/ojg/oj"
)

const (
	DefaultCacheSize = 10_000
	DefaultCacheTTL  = time.Hour
)

type CacheOptions struct {
	// Size is the maximum number of trees held.  Defaults to DefaultCacheSize.
	Size int64
	// TTL is how long each tree is cached for.  Defaults to DefaultCacheTTL.
	TTL time.Duration
}

// NewCachingBuilder returns a TreeBuilder which caches trees built by b, keyed by
// the filter's contents.  Filters with the same keys and values, including the
// Go type of each value, share a single tree regardless of map ordering.  Filters
// holding values other than strings, bools, numbers, byte slices and times are
// built without caching.
//
// Trees are immutable, so cached trees may be shared between callers.  Errors are
// never cached.
func NewCachingBuilder(b TreeBuilder, opts CacheOptions) *CachingBuilder {
	if opts.Size <= 0 {
		opts.Size = DefaultCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	return &CachingBuilder{
		builder: b,
		ttl:     opts.TTL,
		cache:   ccache.New(ccache.Configure().MaxSize(opts.Size)),
	}
}

type CachingBuilder struct {
	builder TreeBuilder
	ttl     time.Duration
	cache   *ccache.Cache

	hits   int64
	misses int64
}

// cachedTree wraps the built expression so that "no expression" results are
// cached too.  canonical is compared on each hit so that hash collisions are
// never served.
type cachedTree struct {
	canonical string
	expr      Expression
}

func (c *CachingBuilder) Build(ctx context.Context, filter map[string]any) (Expression, error) {
	canonical, ok := canonicalKey(filter)
	if !ok {
		expr, err := c.builder.Build(ctx, filter)
		if err != nil {
			return nil, err
		}
		atomic.AddInt64(&c.misses, 1)
		return expr, nil
	}

	key := cacheKey(canonical)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		if cached := item.Value().(cachedTree); cached.canonical == canonical {
			atomic.AddInt64(&c.hits, 1)
			return cached.expr, nil
		}
	}

	expr, err := c.builder.Build(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, cachedTree{canonical: canonical, expr: expr}, c.ttl)
	atomic.AddInt64(&c.misses, 1)
	return expr, nil
}

func (c *CachingBuilder) Hits() int64 {
	return atomic.LoadInt64(&c.hits)
}

func (c *CachingBuilder) Misses() int64 {
	return atomic.LoadInt64(&c.misses)
}

// Stop stops the cache's background worker.
func (c *CachingBuilder) Stop() {
	c.cache.Stop()
}

// cacheKey hashes the canonical encoding via xxhash, keeping ccache's key
// index small for large filters.
func cacheKey(canonical string) string {
	ui := xxhash.Sum64String(canonical)
	return strconv.FormatUint(ui, 36)
}

// canonicalKey returns a stable encoding of a filter map with keys sorted and
// every scalar tagged with its Go type, so that 5 and 5.0 never share a key.  It
// returns false if the filter holds a value with no stable encoding.
func canonicalKey(filter map[string]any) (string, bool) {
	tagged, ok := tagValue(filter)
	if !ok {
		return "", false
	}
	return oj.JSON(tagged, &oj.Options{Sort: true}), true
}

// tagValue walks v with the same shape rules as the builder, replacing each
// scalar with a "type:value" string.
func tagValue(v any) (any, bool) {
	a := argOf(v)
	switch a.kind {
	case argNull:
		return nil, true
	case argMap:
		m := make(map[string]any, len(a.m))
		for k, item := range a.m {
			t, ok := tagValue(item)
			if !ok {
				return nil, false
			}
			m[k] = t
		}
		return m, true
	case argList:
		list := make([]any, len(a.list))
		for n, item := range a.list {
			t, ok := tagValue(item)
			if !ok {
				return nil, false
			}
			list[n] = t
		}
		return list, true
	}

	switch val := a.scalar.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%T:%v", val, val), true
	case []byte:
		return fmt.Sprintf("%T:%x", val, val), true
	case time.Time:
		return "time.Time:" + val.Format(time.RFC3339Nano) + "@" + val.Location().String(), true
	}
	return nil, false
}
