package filter

import (
	"reflect"
)

type argKind int

const (
	argNull argKind = iota
	argScalar
	argList
	argMap
)

// arg is the shape of a single value within a filter map.  Filter maps come from
// request decoders (JSON, GraphQL, YAML) so the concrete Go types vary;  arg lets
// the builder switch on shape alone.
type arg struct {
	kind   argKind
	scalar any
	list   []any
	m      map[string]any
}

func argOf(v any) arg {
	switch val := v.(type) {
	case nil:
		return arg{kind: argNull}
	case map[string]any:
		return arg{kind: argMap, m: val}
	case []any:
		return arg{kind: argList, list: val}
	case string, bool, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return arg{kind: argScalar, scalar: val}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		list := make([]any, rv.Len())
		for n := range list {
			list[n] = rv.Index(n).Interface()
		}
		return arg{kind: argList, list: list}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return arg{kind: argScalar, scalar: v}
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return arg{kind: argMap, m: m}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return arg{kind: argNull}
		}
	}
	return arg{kind: argScalar, scalar: v}
}
