package awsutil

import (
	"strings"
	"unicode"
)

// ScrubNilParameters returns a copy of params with nil-valued keys
// removed, descending into nested maps. Already-scrubbed input comes
// back unchanged, so the function is idempotent.
func ScrubNilParameters(params map[string]interface{}) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			cleaned[k] = ScrubNilParameters(nested)
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

// SnakeCaseKeys converts the CamelCase keys of an AWS response map to
// snake_case, recursively. Values that are maps or lists of maps are
// converted too.
func SnakeCaseKeys(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[CamelToSnake(k)] = snakeCaseValue(v)
	}
	return out
}

func snakeCaseValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return SnakeCaseKeys(val)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, inner := range val {
			items[i] = snakeCaseValue(inner)
		}
		return items
	default:
		return v
	}
}

// CamelToSnake converts a CamelCase identifier to snake_case. Runs of
// capitals are treated as a single word, so "DNSName" becomes "dns_name".
func CamelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) && runes[i-1] != '_' {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
