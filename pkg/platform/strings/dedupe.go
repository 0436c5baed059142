// Package strings holds small slice helpers for label and name lists.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops blanks and repeats, keeping the
// first occurrence order.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with case folding, for label sets
// compared case-insensitively.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
