package catalog

import "strings"

// Match checks if a target name matches a schema pattern.
//
// Supported patterns:
//
//	"orders.created"  → exact match
//	"orders.*"        → matches orders.created, orders.paid, etc. (single segment wildcard)
//	"*"               → matches everything
func Match(pattern, target string) bool {
	if pattern == "*" || pattern == target {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	targetParts := strings.Split(target, ".")
	if len(patternParts) != len(targetParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp != "*" && pp != targetParts[i] {
			return false
		}
	}
	return true
}

// specificity ranks patterns so the most precise one wins: exact names
// first, then patterns with fewer wildcard segments, "*" last.
func specificity(pattern string) int {
	if pattern == "*" {
		return 0
	}
	parts := strings.Split(pattern, ".")
	score := 1000
	for _, p := range parts {
		if p == "*" {
			score -= 10
		}
	}
	return score + len(parts)
}
