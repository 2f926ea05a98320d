package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type parsed struct {
	date   time.Time
	label  string
	amount int64
}

func summarize(txs []model.Transaction) []parsed {
	out := make([]parsed, len(txs))
	for i, tx := range txs {
		out[i] = parsed{tx.Date, tx.Label, tx.AmountMinor}
	}
	return out
}

func TestParseDelimited_BankExport(t *testing.T) {
	data, err := os.ReadFile("testdata/releve_courant.csv")
	require.NoError(t, err)

	txs := ParseDelimited(string(data))
	assert.Equal(t, []parsed{
		{day(2025, 1, 3), "VIR SEPA SALAIRE ACME", 320000},
		{day(2025, 1, 5), "PRLV NETFLIX.COM", -1599},
		{day(2025, 1, 6), "LOYER JANVIER", -85000},
		{day(2025, 1, 9), "CB BOULANGERIE DU PORT", -450},
		{day(2025, 1, 12), "PRLV EDF FACTURE 100234", -6200},
	}, summarize(txs))

	for _, tx := range txs {
		assert.Equal(t, model.SourceCSV, id.SourceOf(tx.ID))
		assert.Equal(t, model.SourceCSV, tx.Source)
		assert.Equal(t, model.StatusPosted, tx.Status)
		assert.Equal(t, id.FingerprintOf(tx), tx.RawFingerprint)
		assert.NotNil(t, tx.Tags)
	}
}

func TestParseDelimited_Layouts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []parsed
	}{
		{
			name: "single amount column",
			text: "Date;Libellé;Montant\n03/01/2025;VIR SALAIRE;3 200,00\n05/01/2025;PRLV NETFLIX;-15,99\n",
			want: []parsed{
				{day(2025, 1, 3), "VIR SALAIRE", 320000},
				{day(2025, 1, 5), "PRLV NETFLIX", -1599},
			},
		},
		{
			name: "label before date",
			text: "Libellé;Date;Montant\nCB CAFE;03/01/2025;-4,50\n",
			want: []parsed{{day(2025, 1, 3), "CB CAFE", -450}},
		},
		{
			name: "no header",
			text: "03/01/2025;CB CAFE;-4,50\n04/01/2025;CB TABAC;-7,00\n",
			want: []parsed{
				{day(2025, 1, 3), "CB CAFE", -450},
				{day(2025, 1, 4), "CB TABAC", -700},
			},
		},
		{
			name: "comma separated iso dates",
			text: "Date,Description,Amount\n2025-01-03,Coffee shop,-4.50\n2025-01-04,\"Refund, partial\",12.00\n",
			want: []parsed{
				{day(2025, 1, 3), "Coffee shop", -450},
				{day(2025, 1, 4), "Refund, partial", 1200},
			},
		},
		{
			name: "tab separated dotted dates",
			text: "Date\tLabel\tAmount\n03.01.2025\tCoffee\t-4,50\n",
			want: []parsed{{day(2025, 1, 3), "Coffee", -450}},
		},
		{
			name: "pipe separated two digit year",
			text: "date|libelle|montant\n03-01-25|Café|-4,50\n",
			want: []parsed{{day(2025, 1, 3), "Café", -450}},
		},
		{
			name: "rows joined into one quoted cell",
			text: "\"Date;Libellé;Montant\"\n\"03/01/2025;CB CAFE;-4,50\"\n",
			want: []parsed{{day(2025, 1, 3), "CB CAFE", -450}},
		},
		{
			name: "debit and credit columns",
			text: "Date;Libellé;Débit;Crédit\n03/01/2025;VIR SALAIRE;;3200,00\n05/01/2025;PRLV NETFLIX;15,99;\n",
			want: []parsed{
				{day(2025, 1, 3), "VIR SALAIRE", 320000},
				{day(2025, 1, 5), "PRLV NETFLIX", -1599},
			},
		},
		{
			name: "signed debit column",
			text: "Date;Libellé;Débit;Crédit\n05/01/2025;PRLV NETFLIX;-15,99;0,00\n",
			want: []parsed{{day(2025, 1, 5), "PRLV NETFLIX", -1599}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarize(ParseDelimited(tt.text)))
		})
	}
}

func TestParseDelimited_CommasInFirstLabel(t *testing.T) {
	text := "01/01/2025;PRLV SEPA FREE, REF 12, PARIS;-19,99\n" +
		"02/01/2025;Loyer Habitat;-950,00\n" +
		"03/01/2025;CB Carrefour;-45,30\n"

	assert.Equal(t, []parsed{
		{day(2025, 1, 1), "PRLV SEPA FREE, REF 12, PARIS", -1999},
		{day(2025, 1, 2), "Loyer Habitat", -95000},
		{day(2025, 1, 3), "CB Carrefour", -4530},
	}, summarize(ParseDelimited(text)))
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"semicolon", "a;b;c\n1;2;3\n", ';'},
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"tab", "a\tb\n1\t2\n", '\t'},
		{"quoted commas ignored", "\"a,b\";c\n\"1,2\";3\n", ';'},
		{"consistent count beats larger count", "a;b,c,d,e;f\n1;2;3\n4;5;6\n", ';'},
		{"single line tie keeps semicolon", "03/01/2025;CB CAFE;-4,50\n", ';'},
		{"nothing to count", "hello\n", ';'},
		{"empty", "", ';'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffDelimiter(tt.text))
		})
	}
}

func TestParseDelimited_SkipsBadRows(t *testing.T) {
	text := "Date;Libellé;Montant\n" +
		"pas une date;CB CAFE;-4,50\n" +
		"03/01/2025;;-4,50\n" +
		"03/01/2025;CB CAFE;abc\n" +
		"31/02/2025;CB CAFE;-4,50\n" +
		"03/01/2025;CB CAFE;0,00\n" +
		"03/01/2025\n" +
		"\n" +
		"04/01/2025;CB TABAC;-7,00\n"

	txs, skipped := parseDelimited(text)
	assert.Equal(t, []parsed{{day(2025, 1, 4), "CB TABAC", -700}}, summarize(txs))
	assert.Equal(t, 6, skipped)
}

func TestParseDelimited_Empty(t *testing.T) {
	assert.Empty(t, ParseDelimited(""))
	assert.Empty(t, ParseDelimited("Date;Libellé;Montant\n"))
}

func TestParseDelimited_Deterministic(t *testing.T) {
	data, err := os.ReadFile("testdata/releve_courant.csv")
	require.NoError(t, err)
	assert.Equal(t, ParseDelimited(string(data)), ParseDelimited(string(data)))
}

func TestDelimitedParser_SetsCurrency(t *testing.T) {
	p := &DelimitedParser{Currency: "EUR"}
	txs, err := p.Parse(context.Background(), []byte("03/01/2025;CB CAFE;-4,50\n"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "EUR", txs[0].Currency)
	assert.Equal(t, "delimited", p.Format())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"03/01/2025", day(2025, 1, 3), true},
		{"3/1/2025", day(2025, 1, 3), true},
		{"03.01.2025", day(2025, 1, 3), true},
		{"03-01-2025", day(2025, 1, 3), true},
		{"03/01/25", day(2025, 1, 3), true},
		{"2025-01-03", day(2025, 1, 3), true},
		{" 29/02/2024 ", day(2024, 2, 29), true},
		{"29/02/2025", time.Time{}, false},
		{"13/13/2025", time.Time{}, false},
		{"2025/01/03", time.Time{}, false},
		{"janvier", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

type stubParser struct{ format string }

func (p stubParser) Format() string { return p.format }

func (p stubParser) Parse(context.Context, []byte) ([]model.Transaction, error) { return nil, nil }

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
	assert.Nil(t, r.ForFile("statement.ofx"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubParser{"ofx"}, ".OFX", "qfx")

	require.NotNil(t, r.Get("OFX"))
	assert.Equal(t, "ofx", r.ForFile("bank.ofx").Format())
	assert.Equal(t, "ofx", r.ForFile("BANK.QFX").Format())
	assert.Equal(t, []string{"ofx", "qfx"}, r.Extensions())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(stubParser{"ofx"}, "ofx")

	assert.Panics(t, func() { r.Register(stubParser{"OFX"}) })
	assert.Panics(t, func() { r.Register(stubParser{"qif"}, "ofx") })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry("EUR", nil)
	assert.Equal(t, []string{"csv", "pdf", "tsv", "txt"}, r.Extensions())
	assert.Equal(t, "delimited", r.ForFile("export.CSV").Format())
	assert.Equal(t, "pdf", r.ForFile("releve.pdf").Format())
	assert.Nil(t, r.ForFile("notes.docx"))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	processedDir := filepath.Join(importDir, "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	for _, name := range []string{"releve.pdf", "bank.csv", "notes.docx"} {
		require.NoError(t, os.WriteFile(filepath.Join(importDir, name), []byte("data"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir, DefaultRegistry("EUR", nil))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, FileInfo{Name: "bank.csv", Path: filepath.Join(importDir, "bank.csv"), Size: 4, Format: "delimited"}, files[0])
	assert.Equal(t, "releve.pdf", files[1].Name)
	assert.Equal(t, "pdf", files[1].Format)
}

func TestScan_NoImportDir(t *testing.T) {
	files, err := Scan(t.TempDir(), DefaultRegistry("EUR", nil))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestMarkProcessed_Missing(t *testing.T) {
	err := MarkProcessed(t.TempDir(), "ghost.csv")
	assert.ErrorContains(t, err, "moving ghost.csv")
}

type fixedCategory model.Category

func (c fixedCategory) Categorize(model.Transaction) model.Category { return model.Category(c) }

type failingDecoder struct{}

func (failingDecoder) Decode(context.Context, []byte) ([]document.Page, error) {
	return nil, &document.DocumentDecodeError{Err: errors.New("truncated")}
}

func TestIngestor(t *testing.T) {
	ctx := context.Background()
	in := NewIngestor(fixedCategory(model.CategoryLeisure), "EUR", &document.Parser{Decoder: failingDecoder{}})

	txs := in.IngestDelimited(ctx, "03/01/2025;CB CINEMA;-12,00\n")
	require.Len(t, txs, 1)
	assert.Equal(t, model.CategoryLeisure, txs[0].Category)
	assert.Equal(t, "EUR", txs[0].Currency)

	txs, err := in.IngestFile(ctx, "janvier.csv", []byte("03/01/2025;CB CINEMA;-12,00\n"))
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	_, err = in.IngestFile(ctx, "notes.docx", nil)
	assert.ErrorContains(t, err, "no parser for notes.docx")

	var decErr *document.DocumentDecodeError
	_, err = in.IngestFile(ctx, "releve.pdf", []byte("%PDF"))
	assert.ErrorAs(t, err, &decErr)

	_, err = in.IngestDocument(ctx, []byte("%PDF"))
	assert.ErrorAs(t, err, &decErr)
}

func TestIngestor_NoDocumentParser(t *testing.T) {
	in := &Ingestor{Registry: NewRegistry()}
	_, err := in.IngestDocument(context.Background(), nil)
	assert.Error(t, err)
}
