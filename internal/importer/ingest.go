package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/releve-dev/releve/internal/document"
	"github.com/releve-dev/releve/internal/model"
)

// Categorizer assigns a category to a candidate before it is emitted.
type Categorizer interface {
	Categorize(tx model.Transaction) model.Category
}

// Ingestor runs the statement parsers and categorizes their output. The
// categorizer is supplied by the caller; parsing itself touches no
// storage.
type Ingestor struct {
	Categorizer Categorizer
	Registry    *Registry
	Currency    string
}

// NewIngestor returns an ingestor over the default registry.
func NewIngestor(cat Categorizer, currency string, doc *document.Parser) *Ingestor {
	return &Ingestor{
		Categorizer: cat,
		Registry:    DefaultRegistry(currency, doc),
		Currency:    currency,
	}
}

// IngestDelimited parses delimited text into categorized candidates.
func (in *Ingestor) IngestDelimited(ctx context.Context, text string) []model.Transaction {
	p := &DelimitedParser{Currency: in.Currency}
	txs, _ := p.Parse(ctx, []byte(text))
	return in.categorize(txs)
}

// IngestDocument parses document bytes into categorized candidates.
func (in *Ingestor) IngestDocument(ctx context.Context, data []byte) ([]model.Transaction, error) {
	p := in.Registry.Get("pdf")
	if p == nil {
		return nil, errors.New("no document parser registered")
	}
	txs, err := p.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	return in.categorize(txs), nil
}

// IngestFile dispatches on the file extension of name.
func (in *Ingestor) IngestFile(ctx context.Context, name string, data []byte) ([]model.Transaction, error) {
	p := in.Registry.ForFile(name)
	if p == nil {
		return nil, fmt.Errorf("no parser for %s", name)
	}
	txs, err := p.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return in.categorize(txs), nil
}

func (in *Ingestor) categorize(txs []model.Transaction) []model.Transaction {
	if in.Categorizer == nil {
		return txs
	}
	for i := range txs {
		txs[i].Category = in.Categorizer.Categorize(txs[i])
	}
	return txs
}
