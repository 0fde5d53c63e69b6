// Package project normalizes and detects PQP project codes such as
// "322IN" or "291RT P700".
package project

import (
	"regexp"
	"strings"
)

// codeRE matches a three-digit, two-or-three-letter core with an optional
// " P###" suffix.
var codeRE = regexp.MustCompile(`(?i)\b\d{3}[A-Z]{2,3}\b(?:\s*P\d{3})?`)

// Normalize upper-cases a project code and collapses whitespace runs to a
// single space. The suffix token is kept.
func Normalize(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), " "))
}

// Detect returns the first project code found in text (for example a file
// name or sheet title), normalized, or "" when there is none.
func Detect(text string) string {
	m := codeRE.FindString(strings.Join(strings.Fields(text), " "))
	if m == "" {
		return ""
	}
	return Normalize(m)
}
