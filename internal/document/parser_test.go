package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/model"
)

type fakeDecoder struct {
	pages []Page
	err   error
}

func (f *fakeDecoder) Decode(_ context.Context, _ []byte) ([]Page, error) {
	return f.pages, f.err
}

type blockingDecoder struct {
	release chan struct{}
}

func (b *blockingDecoder) Decode(_ context.Context, _ []byte) ([]Page, error) {
	<-b.release
	return nil, nil
}

// row lays out words left to right on one baseline.
func row(y float64, words ...string) []Token {
	tokens := make([]Token, 0, len(words))
	for i, w := range words {
		tokens = append(tokens, Token{X: 50 + float64(i)*60, Y: y, FontSize: 10, Text: w})
	}
	return tokens
}

func page(n int, rows ...[]Token) Page {
	p := Page{Number: n}
	for _, r := range rows {
		p.Tokens = append(p.Tokens, r...)
	}
	return p
}

func newTestParser(pages ...Page) *Parser {
	return &Parser{Decoder: &fakeDecoder{pages: pages}, Currency: "EUR"}
}

func TestParser_PrimaryPass(t *testing.T) {
	p := newTestParser(
		page(1,
			row(800, "RELEVE", "DE", "COMPTE"),
			row(760, "Date", "Libellé", "Débit", "Crédit"),
			row(700, "03/01/2025", "VIR", "SALAIRE", "0,00", "3200,00"),
			row(680, "05/01/2025", "PRLV", "NETFLIX", "-15,99"),
			row(660, "31/01/2025", "SOLDE", "CREDITEUR", "3184,01"),
		),
		page(2,
			row(700, "05/01/2025", "PRLV", "NETFLIX", "-15,99"),
			row(680, "06/01/2025", "LOYER", "JANVIER", "-850,00"),
		),
	)

	txs, err := p.Parse(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "VIR SALAIRE", txs[0].Label)
	assert.Equal(t, int64(320000), txs[0].AmountMinor)
	assert.Equal(t, "PRLV NETFLIX", txs[1].Label)
	assert.Equal(t, int64(-1599), txs[1].AmountMinor)
	assert.Equal(t, "LOYER JANVIER", txs[2].Label)
	assert.Equal(t, int64(-85000), txs[2].AmountMinor)

	for _, tx := range txs {
		assert.Equal(t, model.SourcePDF, tx.Source)
		assert.Equal(t, model.StatusPosted, tx.Status)
		assert.Equal(t, "EUR", tx.Currency)
		assert.Empty(t, tx.AccountID)
		assert.NotNil(t, tx.Tags)
		assert.True(t, strings.HasPrefix(tx.ID, "tx_pdf_"), tx.ID)
		assert.Equal(t, id.TransactionID(tx.Date, tx.Label, tx.AmountMinor, model.SourcePDF), tx.ID)
		assert.Equal(t, id.FingerprintOf(tx), tx.DedupeHash)
		assert.NotEmpty(t, tx.NormalizedLabel)
	}
}

func TestParser_GlobalScanFallback(t *testing.T) {
	// Amounts sit on their own baseline, so no clustered line carries both a
	// date and an amount.
	p := newTestParser(page(1,
		row(700, "05/01/2025", "NETFLIX", "ABONNEMENT"),
		row(690, "-15,99"),
		row(670, "06/01/2025", "LOYER"),
		row(660, "-850,00"),
	))

	txs, err := p.Parse(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "NETFLIX ABONNEMENT", txs[0].Label)
	assert.Equal(t, int64(-1599), txs[0].AmountMinor)
	assert.Equal(t, "LOYER", txs[1].Label)
	assert.Equal(t, int64(-85000), txs[1].AmountMinor)
}

func TestParser_NaiveLinesFallback(t *testing.T) {
	// A margin note two points above the row is clustered into it and makes
	// the merged line look like bank details.
	tokens := row(700, "5", "janvier", "2025", "NETFLIX", "-15,99")
	tokens = append(tokens, Token{X: 500, Y: 702, FontSize: 8, Text: "IBAN"})
	p := newTestParser(Page{Number: 1, Tokens: tokens})

	txs, err := p.Parse(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "NETFLIX", txs[0].Label)
	assert.Equal(t, date(2025, 1, 5), txs[0].Date)
	assert.Equal(t, int64(-1599), txs[0].AmountMinor)
}

func TestParser_NothingRecognized(t *testing.T) {
	p := newTestParser(page(1, row(700, "Conditions", "générales")))

	txs, err := p.Parse(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParser_Idempotent(t *testing.T) {
	p := newTestParser(page(1,
		row(700, "05/01/2025", "PRLV", "NETFLIX", "-15,99"),
		row(680, "06/01/2025", "LOYER", "JANVIER", "-850,00"),
	))

	first, err := p.Parse(context.Background(), nil)
	require.NoError(t, err)
	second, err := p.Parse(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParser_DecodeError(t *testing.T) {
	p := &Parser{Decoder: &fakeDecoder{err: &DocumentDecodeError{Err: errors.New("broken xref")}}}

	txs, err := p.Parse(context.Background(), nil)
	assert.Nil(t, txs)
	var decErr *DocumentDecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Contains(t, err.Error(), "broken xref")
}

func TestParser_Cancelled(t *testing.T) {
	dec := &blockingDecoder{release: make(chan struct{})}
	t.Cleanup(func() { close(dec.release) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Parser{Decoder: dec}).Parse(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFDecoder_Corrupt(t *testing.T) {
	dec := NewPDFDecoder()

	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("this is not a pdf at all"),
		"header":  []byte("%PDF-1.4\n%%EOF"),
	} {
		t.Run(name, func(t *testing.T) {
			pages, err := dec.Decode(context.Background(), data)
			assert.Nil(t, pages)
			var decErr *DocumentDecodeError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}
