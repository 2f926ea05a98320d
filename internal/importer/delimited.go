package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/label"
	"github.com/releve-dev/releve/internal/logger"
	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/money"
)

// DelimitedParser reads delimited bank exports (CSV, semicolon or tab
// separated).
type DelimitedParser struct {
	Currency string
}

// Format returns the parser name.
func (p *DelimitedParser) Format() string { return "delimited" }

// Parse decodes data as text and returns transaction candidates. It never
// fails on malformed rows; they are dropped.
func (p *DelimitedParser) Parse(ctx context.Context, data []byte) ([]model.Transaction, error) {
	txs, skipped := parseDelimited(string(data))
	for i := range txs {
		txs[i].Currency = p.Currency
	}
	log := logger.FromContext(ctx)
	log.Debug().
		Int("rows", len(txs)).
		Int("skipped", skipped).
		Msg("parsed delimited text")
	return txs, nil
}

// ParseDelimited extracts one candidate per valid data row of text. The
// column layout is inferred from a header row when present, otherwise
// date, label and amount are taken from the first three columns.
func ParseDelimited(text string) []model.Transaction {
	txs, _ := parseDelimited(text)
	return txs
}

// columnMapping locates the fields of a row. unset marks an absent column.
type columnMapping struct {
	date   int
	label  int
	amount int
	debit  int
	credit int
}

const unset = -1

var defaultMapping = columnMapping{date: 0, label: 1, amount: 2, debit: unset, credit: unset}

var (
	dateKeywords   = []string{"date"}
	labelKeywords  = []string{"libelle", "label", "description", "intitule", "details", "detail", "operation", "memo", "wording", "narrative"}
	amountKeywords = []string{"montant", "amount", "somme"}
	debitKeywords  = []string{"debit", "sortie", "depense", "withdrawal", "paid out"}
	creditKeywords = []string{"credit", "entree", "recette", "deposit", "paid in"}
)

// sniffCandidates are tried in order; ties go to the earlier delimiter.
var sniffCandidates = []rune{';', ',', '\t', '|'}

const defaultDelimiter = ';'

func parseDelimited(text string) ([]model.Transaction, int) {
	text = strings.TrimPrefix(text, "\ufeff")
	rows := readRows(text, sniffDelimiter(text))
	if len(rows) == 0 {
		return nil, 0
	}

	mapping := defaultMapping
	if isHeader(rows[0]) {
		mapping = inferMapping(rows[0])
		rows = rows[1:]
	}

	var txs []model.Transaction
	skipped := 0
	for _, rec := range rows {
		tx, ok := parseRow(rec, mapping)
		if !ok {
			skipped++
			continue
		}
		txs = append(txs, tx)
	}
	return txs, skipped
}

// sniffDelimiter picks the candidate whose per-line count is most
// consistent over the first sniffLines non-blank lines. Ties go to the
// earlier candidate.
func sniffDelimiter(text string) rune {
	var sample []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sample = append(sample, line)
		if len(sample) == sniffLines {
			break
		}
	}

	best, bestScore := defaultDelimiter, 0
	for _, c := range sniffCandidates {
		if score := consistency(sample, c); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

const sniffLines = 10

// consistency returns how many lines share the most common non-zero count
// of delim.
func consistency(lines []string, delim rune) int {
	freq := make(map[int]int)
	score := 0
	for _, line := range lines {
		n := countUnquoted(line, delim)
		if n == 0 {
			continue
		}
		freq[n]++
		score = max(score, freq[n])
	}
	return score
}

func countUnquoted(line string, delim rune) int {
	n := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			n++
		}
	}
	return n
}

// readRows reads every record it can, skipping records the csv reader
// rejects, and re-splits rows that arrived as one semicolon-joined cell.
func readRows(text string, delim rune) [][]string {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		rec = normalizeRow(rec)
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return rows
}

func normalizeRow(rec []string) []string {
	if len(rec) == 1 && strings.Contains(rec[0], ";") {
		rec = strings.Split(rec[0], ";")
	}
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(c), `"`))
	}
	return out
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if c != "" {
			return false
		}
	}
	return true
}

// isHeader reports whether the first cell reads like a column title.
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := label.Normalize(rec[0])
	if strings.Contains(first, "date") {
		return true
	}
	return matchesAny(first, labelKeywords)
}

func inferMapping(header []string) columnMapping {
	m := columnMapping{date: unset, label: unset, amount: unset, debit: unset, credit: unset}
	for i, title := range header {
		h := label.Normalize(title)
		if matchesAny(h, dateKeywords) {
			// Later date columns are value dates.
			if m.date == unset {
				m.date = i
			}
			continue
		}
		switch {
		case m.debit == unset && matchesAny(h, debitKeywords):
			m.debit = i
		case m.credit == unset && matchesAny(h, creditKeywords):
			m.credit = i
		case m.amount == unset && matchesAny(h, amountKeywords):
			m.amount = i
		case m.label == unset && matchesAny(h, labelKeywords):
			m.label = i
		}
	}

	if m.date == unset {
		m.date = defaultMapping.date
	}
	if m.label == unset {
		m.label = firstFree(len(header), m)
	}
	if m.amount == unset && m.debit == unset && m.credit == unset {
		m.amount = defaultMapping.amount
	}
	return m
}

// firstFree returns the first column not claimed by another field.
func firstFree(n int, m columnMapping) int {
	used := map[int]bool{m.date: true, m.amount: true, m.debit: true, m.credit: true}
	for i := 0; i < n; i++ {
		if !used[i] {
			return i
		}
	}
	return defaultMapping.label
}

// matchesAny reports whether any keyword appears in s as a whole word.
// Multi-word keywords match as a phrase.
func matchesAny(s string, keywords []string) bool {
	padded := " " + s + " "
	for _, k := range keywords {
		if strings.Contains(padded, " "+k+" ") {
			return true
		}
	}
	return false
}

func parseRow(rec []string, m columnMapping) (model.Transaction, bool) {
	if len(rec) < 2 {
		return model.Transaction{}, false
	}

	date, ok := ParseDate(cell(rec, m.date))
	if !ok {
		return model.Transaction{}, false
	}

	lbl := strings.Join(strings.Fields(cell(rec, m.label)), " ")
	if lbl == "" {
		return model.Transaction{}, false
	}

	amount, ok := rowAmount(rec, m)
	if !ok || amount == 0 {
		return model.Transaction{}, false
	}

	tx := model.Transaction{
		Date:        date,
		Label:       lbl,
		AmountMinor: amount,
		Source:      model.SourceCSV,
		Status:      model.StatusPosted,
		Tags:        []string{},
	}
	id.Stamp(&tx)
	return tx, true
}

// rowAmount reads the single amount column, or prefers a non-zero credit
// (income) over a non-zero debit (expense).
func rowAmount(rec []string, m columnMapping) (int64, bool) {
	if m.debit == unset && m.credit == unset {
		v, err := money.ParseAmount(cell(rec, m.amount))
		if err != nil {
			return 0, false
		}
		return v, true
	}

	if v, ok := nonZero(cell(rec, m.credit)); ok {
		return abs(v), true
	}
	if v, ok := nonZero(cell(rec, m.debit)); ok {
		return -abs(v), true
	}
	if m.amount != unset {
		v, err := money.ParseAmount(cell(rec, m.amount))
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func nonZero(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := money.ParseAmount(s)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

var (
	dayFirstDate = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})$`)
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

// ParseDate reads DD/MM/YYYY, DD.MM.YYYY, DD-MM-YYYY (two-digit years are
// 20xx) and ISO YYYY-MM-DD. Impossible dates are rejected.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	var day, month, year string
	if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else if m := isoDate.FindStringSubmatch(s); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else {
		return time.Time{}, false
	}

	d, _ := strconv.Atoi(day)
	mo, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	if len(year) == 2 {
		y += 2000
	}
	return document.ValidDate(y, time.Month(mo), d)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
