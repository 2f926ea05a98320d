// Package label canonicalizes free-text transaction descriptions.
//
// Two strengths are provided. Normalize feeds identity and fingerprinting
// and keeps every digit, so distinct transactions stay distinct.
// NormalizeForRecurrence also drops dates and standalone numbers so that
// monthly invoices with changing references group together.
package label

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// idLabelMax is the rune length kept by ForID.
const idLabelMax = 50

var (
	dateToken  = regexp.MustCompile(`\b\d{1,4}[/.\-]\d{1,2}(?:[/.\-]\d{2,4})?\b`)
	digitToken = regexp.MustCompile(`\b\d+\b`)
)

// Normalize strips diacritics, drops everything but letters, digits,
// spaces, hyphens and underscores, collapses whitespace, trims and
// lowercases. It never fails.
func Normalize(s string) string {
	s = stripDiacritics(s)
	s = keepAllowed(s)
	return strings.ToLower(collapse(s))
}

// NormalizeForRecurrence is Normalize with date-like tokens and standalone
// digit runs removed before collapsing.
func NormalizeForRecurrence(s string) string {
	s = stripDiacritics(s)
	s = dateToken.ReplaceAllString(s, " ")
	s = keepAllowed(s)
	s = digitToken.ReplaceAllString(s, " ")
	return strings.ToLower(collapse(s))
}

// ForID returns the normalized label truncated to the length used in
// transaction IDs.
func ForID(s string) string {
	n := Normalize(s)
	r := []rune(n)
	if len(r) > idLabelMax {
		return string(r[:idLabelMax])
	}
	return n
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func keepAllowed(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
