package providers

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field walks nested maps along path and returns the value found there.
func Field(payload map[string]any, path ...string) (any, bool) {
	if len(payload) == 0 || len(path) == 0 {
		return nil, false
	}
	var current any = payload
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// StringField renders the value at path as a stable string. JSON numbers
// with integral values render without a fractional part, so numeric ids
// survive the float64 round trip.
func StringField(payload map[string]any, path ...string) string {
	value, ok := Field(payload, path...)
	if !ok {
		return ""
	}
	return Stringify(value)
}

func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
