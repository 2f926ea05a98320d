package document

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/releve-dev/releve/internal/label"
	"github.com/releve-dev/releve/internal/money"
)

// DefaultAmountCeiling is the magnitude, in cents, above which a parsed
// amount is treated as a mis-read page or account number.
const DefaultAmountCeiling int64 = 100_000_000

const minLabelLen = 3

// Candidate is a transaction extracted from document text, before identity
// is assigned.
type Candidate struct {
	Date        time.Time
	Label       string
	AmountMinor int64
}

type dateKind int

const (
	numericLongYear dateKind = iota
	numericShortYear
	textual
)

type datePattern struct {
	re   *regexp.Regexp
	kind dateKind
}

const monthNames = `janvier|fevrier|février|mars|avril|mai|juin|juillet|aout|août|septembre|octobre|novembre|decembre|décembre|` +
	`january|february|march|april|may|june|july|august|september|october|november|december|` +
	`janv|fevr|févr|avr|juil|sept|jan|feb|fev|fév|mar|apr|jun|jul|aug|sep|oct|nov|dec|déc`

// datePatterns are tried in order; the first pattern with a valid match wins.
var datePatterns = []datePattern{
	{regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})\b`), numericLongYear},
	{regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2})\b`), numericShortYear},
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:er)?\s+(` + monthNames + `)\.?\s+(\d{4})\b`), textual},
}

// secondaryDates are value dates and card dates left in the label.
var secondaryDates = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)

const currencySign = `[€$£]`

// amountFamilies are tried in order; the first family yielding any match
// is used for the whole line.
var amountFamilies = []*regexp.Regexp{
	// Thousands-separated: 1 234,56  1.234,56  1,234.56
	regexp.MustCompile(`(?:[-+−]\s?)?(?:` + currencySign + `\s?)?\d{1,3}(?:[ \x{00a0}\x{202f}.,]\d{3})+[.,]\d{2}(?:\s?(?:` + currencySign + `|EUR|USD|GBP))?`),
	// Plain decimal: 45,30  -12.50  15,99€
	regexp.MustCompile(`(?:[-+−]\s?)?(?:` + currencySign + `\s?)?\d+[.,]\d{2}(?:\s?(?:` + currencySign + `|EUR|USD|GBP))?`),
}

var currencyTokens = regexp.MustCompile(`(?i)(?:\b(?:EUR|USD|GBP)\b|` + currencySign + `)`)

// noisePatterns reject statement furniture recognizable anywhere on the
// line. They run against the normalized line.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^dates?\b.*\b(libelle|operations?|debit|credit|montant|description|details?)\b`),
	regexp.MustCompile(`\b(libelle|description)\b.*\b(debit|credit|montant|amount)\b`),
	regexp.MustCompile(`\bpage\s+\d+`),
	regexp.MustCompile(`\b(iban|bic|swift|rib)\b`),
	regexp.MustCompile(`\b(numero de compte|n de compte|account number|sort code)\b`),
	regexp.MustCompile(`\b(date d(?:e )?arrete|periode du|period from)\b`),
}

// furniturePatterns reject totals, balances and headings. They run against
// the normalized label left once date and amounts are removed, so a
// merchant such as "CB TOTAL ENERGIES" still matches.
var furniturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(sous-total|sous total|totaux|totals?)(\s+(des|du|de|general|generaux|operations?|mouvements?|debits?|credits?|periode|mois|for|of)\b|$)`),
	regexp.MustCompile(`^(ancien|nouveau|new|old|opening|closing|previous)\s+(solde|balance)\b`),
	regexp.MustCompile(`^(solde|balance)\b`),
	regexp.MustCompile(`^report\b`),
	regexp.MustCompile(`^(releve|statement)\b`),
}

var months = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "jan": time.January, "january": time.January,
	"fevrier": time.February, "fevr": time.February, "fev": time.February, "february": time.February, "feb": time.February,
	"mars": time.March, "mar": time.March, "march": time.March,
	"avril": time.April, "avr": time.April, "april": time.April, "apr": time.April,
	"mai": time.May, "may": time.May,
	"juin": time.June, "june": time.June, "jun": time.June,
	"juillet": time.July, "juil": time.July, "july": time.July, "jul": time.July,
	"aout": time.August, "august": time.August, "aug": time.August,
	"septembre": time.September, "sept": time.September, "sep": time.September, "september": time.September,
	"octobre": time.October, "oct": time.October, "october": time.October,
	"novembre": time.November, "nov": time.November, "november": time.November,
	"decembre": time.December, "dec": time.December, "december": time.December,
}

// MatchLine extracts a candidate from a single text line. ceiling bounds
// accepted amount magnitudes; zero means DefaultAmountCeiling.
func MatchLine(line string, ceiling int64) (Candidate, bool) {
	if ceiling <= 0 {
		ceiling = DefaultAmountCeiling
	}
	if isNoise(line) {
		return Candidate{}, false
	}

	date, rest, ok := findDate(line)
	if !ok {
		return Candidate{}, false
	}
	rest = secondaryDates.ReplaceAllString(rest, " ")

	amounts, spans := findAmounts(rest, ceiling)
	if len(amounts) == 0 {
		return Candidate{}, false
	}

	amount := direction(amounts)
	if amount == 0 {
		return Candidate{}, false
	}

	lbl := cleanLabel(removeSpans(rest, spans))
	if utf8.RuneCountInString(lbl) < minLabelLen || isFurniture(lbl) {
		return Candidate{}, false
	}

	return Candidate{Date: date, Label: lbl, AmountMinor: amount}, true
}

// direction resolves the signed amount of a line. With two or more amounts
// the first two are a debit/credit pair: a negative first amount is the
// debit; otherwise the second amount decides, positive meaning a credit.
// A zero second amount means the first was an unsigned debit.
func direction(amounts []int64) int64 {
	if len(amounts) == 1 {
		return amounts[0]
	}
	first, second := amounts[0], amounts[1]
	switch {
	case first < 0:
		return first
	case second > 0:
		return second
	case second < 0:
		return second
	default:
		return -abs(first)
	}
}

func findDate(line string) (time.Time, string, bool) {
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(line, -1) {
			d, ok := buildDate(p.kind, line[m[2]:m[3]], line[m[4]:m[5]], line[m[6]:m[7]])
			if !ok {
				continue
			}
			rest := line[:m[0]] + " " + line[m[1]:]
			return d, rest, true
		}
	}
	return time.Time{}, "", false
}

func buildDate(kind dateKind, dayStr, monthStr, yearStr string) (time.Time, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}

	var month time.Month
	switch kind {
	case textual:
		m, ok := months[label.Normalize(monthStr)]
		if !ok {
			return time.Time{}, false
		}
		month = m
	default:
		n, err := strconv.Atoi(monthStr)
		if err != nil {
			return time.Time{}, false
		}
		month = time.Month(n)
	}
	if kind == numericShortYear {
		year += 2000
	}
	return ValidDate(year, month, day)
}

// ValidDate builds a UTC date, rejecting out-of-range days and months
// instead of normalizing them.
func ValidDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || year < 1900 || year > 2999 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

func findAmounts(s string, ceiling int64) ([]int64, [][]int) {
	for _, re := range amountFamilies {
		var values []int64
		var spans [][]int
		for _, loc := range re.FindAllStringIndex(s, -1) {
			loc[1] = trimGluedCode(s, loc[1])
			if !bounded(s, loc[0], loc[1]) {
				continue
			}
			v, err := money.ParseAmount(s[loc[0]:loc[1]])
			if err != nil {
				continue
			}
			spans = append(spans, loc)
			if abs(v) > ceiling {
				continue
			}
			values = append(values, v)
		}
		if len(spans) > 0 {
			return values, spans
		}
	}
	return nil, nil
}

// bounded rejects matches glued to surrounding digits or letters, such as
// the tail of a reference number.
func bounded(s string, start, end int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(prev) || prev == '.' || prev == ',' {
			return false
		}
	}
	if end < len(s) {
		next, _ := utf8.DecodeRuneInString(s[end:])
		if next >= '0' && next <= '9' {
			return false
		}
		if (next == ',' || next == '.') && end+1 < len(s) && s[end+1] >= '0' && s[end+1] <= '9' {
			return false
		}
	}
	return true
}

// trimGluedCode drops a trailing currency code that is really the start of
// a word, as in "12,50 EUROPE".
func trimGluedCode(s string, end int) int {
	if end >= len(s) || !isLetter(s[end]) || !isLetter(s[end-1]) {
		return end
	}
	for end > 0 && isLetter(s[end-1]) {
		end--
	}
	return len(strings.TrimRight(s[:end], " "))
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isWordRune(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func removeSpans(s string, spans [][]int) string {
	if len(spans) == 0 {
		return s
	}
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		b.WriteString(s[prev:sp[0]])
		b.WriteByte(' ')
		prev = sp[1]
	}
	b.WriteString(s[prev:])
	return b.String()
}

func cleanLabel(s string) string {
	s = currencyTokens.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func isNoise(line string) bool {
	return matchesAny(noisePatterns, label.Normalize(line))
}

func isFurniture(lbl string) bool {
	return matchesAny(furniturePatterns, label.Normalize(lbl))
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
