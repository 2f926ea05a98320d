// Package document extracts transactions from paginated statements.
//
// A Decoder turns raw bytes into pages of positioned text tokens. Parse
// rebuilds text lines from token positions, matches each line against date
// and amount patterns, and falls back to flatter text scans when the
// positional pass finds nothing.
package document

import (
	"context"
	"fmt"
)

// Token is a run of text at a position on the page. Coordinates follow PDF
// conventions: Y grows upward, so larger Y is nearer the top.
type Token struct {
	X        float64
	Y        float64
	Width    float64
	FontSize float64
	Text     string
}

// Page is one decoded page, tokens in content-stream order.
type Page struct {
	Number int
	Tokens []Token
}

// Decoder extracts positioned text from a document.
type Decoder interface {
	Decode(ctx context.Context, data []byte) ([]Page, error)
}

// DocumentDecodeError reports unreadable or corrupt document bytes. It is
// fatal for the whole file: no partial results accompany it.
type DocumentDecodeError struct {
	Err error
}

func (e *DocumentDecodeError) Error() string {
	return fmt.Sprintf("decoding document: %v", e.Err)
}

func (e *DocumentDecodeError) Unwrap() error { return e.Err }
