package geocode

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RE2's \s omits vertical tab and the ASCII separators U+001C..U+001F.
var whitespaceRun = regexp.MustCompile(`[\s\x{0b}\x{1c}-\x{1f}\p{Z}\x{85}]+`)

// Normalize produces the cache key for free-form address text: Unicode NFKC,
// whitespace runs collapsed to one space, leading/trailing space trimmed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// WithSuffix normalizes address and appends ", suffix" unless the address
// already mentions suffix (case-insensitive). Empty addresses stay empty.
func WithSuffix(address, suffix string) string {
	a := Normalize(address)
	suffix = Normalize(suffix)
	if a == "" || suffix == "" {
		return a
	}
	if strings.Contains(strings.ToLower(a), strings.ToLower(suffix)) {
		return a
	}
	return a + ", " + suffix
}
