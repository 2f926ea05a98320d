package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMergeGapRatio is the horizontal gap, as a fraction of font size,
// below which adjacent glyph runs are merged into one word.
const DefaultMergeGapRatio = 0.25

// sameBaseline is the vertical distance under which two glyph runs share a
// baseline for merging purposes.
const sameBaseline = 0.5

// PDFDecoder reads PDF bytes with github.com/ledongthuc/pdf.
type PDFDecoder struct {
	MergeGapRatio float64
}

// NewPDFDecoder returns a decoder with the default merge gap.
func NewPDFDecoder() *PDFDecoder {
	return &PDFDecoder{MergeGapRatio: DefaultMergeGapRatio}
}

// Decode extracts word tokens from every page. Corrupt input, including
// input that makes the reader panic, yields a *DocumentDecodeError.
func (d *PDFDecoder) Decode(ctx context.Context, data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &DocumentDecodeError{Err: fmt.Errorf("pdf reader: %v", r)}
		}
	}()

	if len(data) == 0 {
		return nil, &DocumentDecodeError{Err: errors.New("empty document")}
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &DocumentDecodeError{Err: err}
	}

	n := r.NumPage()
	if n == 0 {
		return nil, &DocumentDecodeError{Err: errors.New("document has no pages")}
	}

	ratio := d.MergeGapRatio
	if ratio <= 0 {
		ratio = DefaultMergeGapRatio
	}

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()
		runs := make([]Token, 0, len(content.Text))
		for _, t := range content.Text {
			runs = append(runs, Token{X: t.X, Y: t.Y, Width: t.W, FontSize: t.FontSize, Text: t.S})
		}
		pages = append(pages, Page{Number: i, Tokens: coalesce(runs, ratio)})
	}
	return pages, nil
}

// coalesce merges glyph runs that sit on the same baseline with a gap
// smaller than ratio*fontSize. Whitespace runs end the current word.
func coalesce(runs []Token, ratio float64) []Token {
	var out []Token
	var cur *Token
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimSpace(cur.Text)
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, r := range runs {
		if strings.TrimSpace(r.Text) == "" {
			flush()
			continue
		}
		if cur != nil {
			gap := r.X - (cur.X + cur.Width)
			limit := ratio * math.Max(cur.FontSize, 1)
			if math.Abs(r.Y-cur.Y) < sameBaseline && gap <= limit && gap >= -limit {
				cur.Text += r.Text
				cur.Width = r.X + r.Width - cur.X
				continue
			}
			flush()
		}
		t := r
		cur = &t
	}
	flush()
	return out
}
