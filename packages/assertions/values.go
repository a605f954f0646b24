package assertions

import (
	"encoding/json"
	"reflect"
)

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalize rewrites numbers to float64 inside nested maps and lists so
// values decoded from YAML compare equal to values decoded from JSON.
func normalize(v any) any {
	if f, ok := toFloat64(v); ok {
		return f
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	}
	return v
}

// length returns -1 when v has no length.
func length(v any) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	}
	return -1
}

// isEmpty treats nil as empty and scalars without a length as non-empty.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	return length(v) == 0
}

func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	if b, ok := v.(bool); ok {
		return !b
	}
	if f, ok := toFloat64(v); ok {
		return f == 0
	}
	return length(v) == 0
}
