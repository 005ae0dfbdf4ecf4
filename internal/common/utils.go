package common

import (
	"strings"
	"unicode"
)

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// HasAnyFold is HasAny with case-insensitive matching.
func HasAnyFold(s string, subs ...string) bool {
	lower := make([]string, len(subs))
	for i, sub := range subs {
		lower[i] = strings.ToLower(sub)
	}
	return HasAny(strings.ToLower(s), lower...)
}

// LeadingInt parses the run of ASCII digits at the start of s (after an
// optional sign and surrounding spaces). ok is false when no digit is found.
func LeadingInt(s string) (n int, ok bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			break
		}
		n = n*10 + int(r-'0')
		ok = true
	}
	if neg {
		n = -n
	}
	return n, ok
}
