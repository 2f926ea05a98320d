package document

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/logger"
	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/money"
)

// globalTriple captures date, label and amount directly across the joined
// document text. The label is lazy so each triple stops at its first
// amount.
var globalTriple = regexp.MustCompile(
	`(\d{1,2}[/.\-]\d{1,2}[/.\-](?:\d{4}|\d{2}))\s+(\S.*?)\s+((?:[-+−]\s?)?\d{1,3}(?:[ \x{00a0}.]\d{3})*,\d{2}|(?:[-+−]\s?)?\d+\.\d{2})(?:\s?(?:€|EUR))?`)

// Parser turns document bytes into transaction candidates.
type Parser struct {
	Decoder       Decoder
	LineTolerance float64
	AmountCeiling int64
	Currency      string
}

// NewParser returns a parser backed by the PDF decoder.
func NewParser(currency string) *Parser {
	return &Parser{
		Decoder:       NewPDFDecoder(),
		LineTolerance: DefaultLineTolerance,
		AmountCeiling: DefaultAmountCeiling,
		Currency:      currency,
	}
}

// Parse decodes data and extracts transactions. Decoding runs off the
// caller's goroutine and is abandoned when ctx is done. A decode failure is
// returned as *DocumentDecodeError with no partial results; a document
// with no recognizable rows yields an empty slice and no error.
func (p *Parser) Parse(ctx context.Context, data []byte) ([]model.Transaction, error) {
	pages, err := p.decode(ctx, data)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	ceiling := p.AmountCeiling
	if ceiling <= 0 {
		ceiling = DefaultAmountCeiling
	}
	tol := p.LineTolerance
	if tol <= 0 {
		tol = DefaultLineTolerance
	}

	lines := PageLines(pages, tol)
	candidates := matchLines(lines, ceiling)
	if len(candidates) == 0 {
		log.Debug().Int("lines", len(lines)).Msg("no rows from clustered lines, trying global scan")
		candidates = matchJoined(strings.Join(lines, " "), ceiling)
	}
	if len(candidates) == 0 {
		naive := NaiveLines(pages)
		log.Debug().Int("lines", len(naive)).Msg("no rows from global scan, trying naive lines")
		candidates = matchLines(naive, ceiling)
	}

	txs := p.build(candidates)
	log.Debug().Int("pages", len(pages)).Int("transactions", len(txs)).Msg("parsed document")
	return txs, nil
}

type decodeResult struct {
	pages []Page
	err   error
}

func (p *Parser) decode(ctx context.Context, data []byte) ([]Page, error) {
	dec := p.Decoder
	if dec == nil {
		dec = NewPDFDecoder()
	}

	done := make(chan decodeResult, 1)
	go func() {
		pages, err := dec.Decode(ctx, data)
		done <- decodeResult{pages: pages, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.pages, r.err
	}
}

func matchLines(lines []string, ceiling int64) []Candidate {
	var out []Candidate
	for _, line := range lines {
		if c, ok := MatchLine(line, ceiling); ok {
			out = append(out, c)
		}
	}
	return out
}

func matchJoined(text string, ceiling int64) []Candidate {
	var out []Candidate
	for _, m := range globalTriple.FindAllStringSubmatch(text, -1) {
		date, _, ok := findDate(m[1])
		if !ok {
			continue
		}
		amount, err := money.ParseAmount(m[3])
		if err != nil || amount == 0 || abs(amount) > ceiling {
			continue
		}
		lbl := cleanLabel(m[2])
		if utf8.RuneCountInString(lbl) < minLabelLen || isNoise(lbl) || isFurniture(lbl) {
			continue
		}
		out = append(out, Candidate{Date: date, Label: lbl, AmountMinor: amount})
	}
	return out
}

type tripleKey struct {
	date   string
	label  string
	amount int64
}

func (p *Parser) build(candidates []Candidate) []model.Transaction {
	seenID := make(map[string]struct{}, len(candidates))
	seenTriple := make(map[tripleKey]struct{}, len(candidates))

	txs := make([]model.Transaction, 0, len(candidates))
	for _, c := range candidates {
		tx := model.Transaction{
			Date:        c.Date,
			Label:       c.Label,
			AmountMinor: c.AmountMinor,
			Source:      model.SourcePDF,
			Status:      model.StatusPosted,
			Currency:    p.Currency,
			Tags:        []string{},
		}
		id.Stamp(&tx)

		k := tripleKey{date: tx.DateKey(), label: tx.Label, amount: tx.AmountMinor}
		if _, dup := seenID[tx.ID]; dup {
			continue
		}
		if _, dup := seenTriple[k]; dup {
			continue
		}
		seenID[tx.ID] = struct{}{}
		seenTriple[k] = struct{}{}
		txs = append(txs, tx)
	}
	return txs
}
