package awsutil

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ComparePolicies reports whether two IAM policy documents are
// semantically equal. AWS rewrites policies on storage (single-element
// lists become scalars, statement order is not preserved), so a byte
// comparison of what we sent against what GetBucketPolicy returns would
// report spurious drift. Both documents are parsed and reduced to a
// canonical form before comparison.
func ComparePolicies(a, b string) (bool, error) {
	if a == "" && b == "" {
		return true, nil
	}
	if a == "" || b == "" {
		return false, nil
	}

	canonA, err := canonicalPolicy(a)
	if err != nil {
		return false, fmt.Errorf("failed to parse first policy: %w", err)
	}
	canonB, err := canonicalPolicy(b)
	if err != nil {
		return false, fmt.Errorf("failed to parse second policy: %w", err)
	}
	return canonA == canonB, nil
}

func canonicalPolicy(doc string) (string, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return "", err
	}
	out, err := json.Marshal(canonicalValue(parsed))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// canonicalValue reduces a parsed policy value to a stable shape:
// single-element lists collapse to their element, longer lists are
// sorted by encoding, and the bare "*" principal is expanded to its
// {"AWS": "*"} equivalent.
func canonicalValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if k == "Principal" || k == "NotPrincipal" {
				if s, ok := inner.(string); ok && s == "*" {
					inner = map[string]interface{}{"AWS": "*"}
				}
			}
			result[k] = canonicalValue(inner)
		}
		return result
	case []interface{}:
		if len(val) == 1 {
			return canonicalValue(val[0])
		}
		items := make([]interface{}, len(val))
		for i, inner := range val {
			items[i] = canonicalValue(inner)
		}
		sort.Slice(items, func(i, j int) bool {
			bi, _ := json.Marshal(items[i])
			bj, _ := json.Marshal(items[j])
			return string(bi) < string(bj)
		})
		return items
	case bool:
		// AWS stores condition booleans as strings.
		if val {
			return "true"
		}
		return "false"
	default:
		return val
	}
}
