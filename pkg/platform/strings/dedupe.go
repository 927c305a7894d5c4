// Package strings provides string and identifier list helpers.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims, lowercases and deduplicates values, dropping
// empty entries. Order is preserved.
//
// Example:
//
//	DedupeAndTrimLower([]string{"  Borrower ", "lender", "BORROWER"})
//	// Returns: []string{"borrower", "lender"}
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// FirstDuplicate returns the first value that appears more than once.
func FirstDuplicate[T comparable](values []T) (T, bool) {
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	var zero T
	return zero, false
}
