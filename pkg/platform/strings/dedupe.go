// Package strings holds small slice helpers shared by request normalizers.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops blanks and exact duplicates,
// keeping first-seen order. Session id batches go through it so an id
// repeated in one request is processed once.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

// DedupeAndTrimFold is DedupeAndTrim with case-insensitive matching. The first
// spelling wins, so "Guias" and " guias" collapse to "Guias". It never returns
// nil.
func DedupeAndTrimFold(values []string) []string {
	out := dedupe(values, strings.ToLower)
	if out == nil {
		return []string{}
	}
	return out
}

func dedupe(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		k := key(trimmed)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
