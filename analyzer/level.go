package analyzer

import "strings"

// DefaultLevel is the category assigned to rows that carry none.
const DefaultLevel = "info"

// IsErrorLevel reports whether a category counts as an error. Source files
// mix "Error", "ERROR" and "error"; all of them count.
func IsErrorLevel(level string) bool {
	return strings.EqualFold(strings.TrimSpace(level), "error")
}

// NormalizeLevel trims the category and applies the default. The original
// casing is kept so that level filters match what producers wrote.
func NormalizeLevel(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return DefaultLevel
	}
	return s
}
