package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks after canonical decomposition.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases s, strips accents and drops every character that is not
// a letter or digit: "Planning & Design Risks" -> "planningdesignrisks".
func Fold(s string) string {
	s = strings.ToLower(stripAccents(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens splits s into lower-cased, accent-free alphanumeric words.
// Duplicates are removed; order follows first occurrence.
func Tokens(s string) []string {
	s = strings.ToLower(stripAccents(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// contains reports containment in either direction. The shorter side must
// have at least minContain characters so "id" never matches "paid".
func contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= minContain && strings.Contains(b, a)
}

const minContain = 3
