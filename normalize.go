package filter

// Normalizer rewrites each scalar before it is wrapped into a Value.
type Normalizer func(v any) any

// NormalizeDate is the hook for converting date-like scalars into a single
// representation before they reach a renderer.  It currently returns v unchanged.
func NormalizeDate(v any) any {
	return v
}
