// Package utils provides shared utilities for text and logging.
package utils

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	t := TruncateRunes(s, maxLen)
	if len(t) == len(s) {
		return s
	}
	return t + "..."
}

// TruncateRunes returns the first n runes of s, never splitting a multi-byte
// character. If n is 0 or negative, returns s unchanged.
func TruncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
