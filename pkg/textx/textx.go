// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText drops invalid UTF-8 and control characters other than tab, newline and CR,
// collapses runs of more than two blank lines, and trims surrounding space.
func SanitizeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	b.Grow(len(s))
	newlines := 0
	for _, r := range s {
		switch {
		case r == '\n':
			newlines++
			if newlines > 2 {
				continue
			}
		case r == '\r':
			continue
		case r == '\t' || (r >= 32 && r != 127):
			newlines = 0
		default:
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Clip returns s cut to at most n runes.
func Clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
