package format

import "fmt"

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

// Fraction formats "3/5". A zero total reads "0/0".
func Fraction(n, total int) string {
	return fmt.Sprintf("%d/%d", n, total)
}

// OrNull renders an empty field value as "null".
func OrNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
