// Package money parses and formats locale-formatted amounts as integer
// minor units (cents).
package money

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrEmptyAmount is wrapped by InvalidAmountError for blank input.
var ErrEmptyAmount = errors.New("empty amount")

// InvalidAmountError reports that a string could not be read as an amount.
// A parse failure is never reported as zero.
type InvalidAmountError struct {
	Input  string
	Reason string
	Err    error
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return e.Err }

// maxMinor bounds parsed values so they fit comfortably in int64.
const maxMinor = int64(1e15)

var currencyCodes = []string{"EUR", "USD", "GBP", "CHF"}

var hundred = decimal.NewFromInt(100)

// ParseAmount parses text such as "1 234,56", "-45,30", "1234.56" or
// "€ 15,99" into signed cents.
//
// A comma is the decimal separator only when it is the rightmost separator
// and is followed by exactly two digits; otherwise the dot is. Everything
// else is a thousands separator.
func ParseAmount(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &InvalidAmountError{Input: text, Reason: "empty", Err: ErrEmptyAmount}
	}

	s = stripDecorations(s)
	if s == "" {
		return 0, &InvalidAmountError{Input: text, Reason: "no digits", Err: ErrEmptyAmount}
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, &InvalidAmountError{Input: text, Reason: "sign without digits"}
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != ',' && r != '.' {
			return 0, &InvalidAmountError{Input: text, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}

	canonical, err := canonicalDecimal(s)
	if err != nil {
		return 0, &InvalidAmountError{Input: text, Reason: err.Error()}
	}

	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return 0, &InvalidAmountError{Input: text, Reason: "not a number", Err: err}
	}
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThanOrEqual(decimal.NewFromInt(maxMinor)) {
		return 0, &InvalidAmountError{Input: text, Reason: "out of range"}
	}

	v := cents.IntPart()
	if negative {
		v = -v
	}
	return v, nil
}

// stripDecorations removes whitespace (including the non-breaking spaces
// used as French thousands separators), currency symbols and codes.
// A unicode minus is folded to '-'.
func stripDecorations(s string) string {
	upper := strings.ToUpper(s)
	for _, code := range currencyCodes {
		if i := strings.Index(upper, code); i >= 0 {
			s = s[:i] + s[i+len(code):]
			upper = upper[:i] + upper[i+len(code):]
		}
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), r == '\u00a0', r == '\u202f':
		case r == '€', r == '$', r == '£':
		case r == '\u2212':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// canonicalDecimal rewrites digits and separators into "1234.56" form.
func canonicalDecimal(s string) (string, error) {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	if lastComma > lastDot && len(s)-lastComma-1 == 2 {
		if strings.Count(s, ",") > 1 {
			return "", errors.New("multiple decimal separators")
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
		if strings.Count(s, ".") > 1 {
			return "", errors.New("multiple decimal separators")
		}
	}

	if strings.Trim(s, ".") == "" {
		return "", errors.New("no digits")
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	return s, nil
}

// Format renders cents in French style, "-1 234,56", using a non-breaking
// space as thousands separator. ParseAmount(Format(n)) == n.
func Format(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	units := minor / 100
	frac := minor % 100

	digits := fmt.Sprintf("%d", units)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteRune('\u00a0')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s,%02d", sign, b.String(), frac)
}

// FormatPlain renders cents as "-1234.56".
func FormatPlain(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// FormatAbs renders the magnitude of minor with two decimals, "1234.56".
func FormatAbs(minor int64) string {
	if minor < 0 {
		minor = -minor
	}
	return FormatPlain(minor)
}
