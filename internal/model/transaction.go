package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the producer of a transaction.
type Source string

const (
	SourceManual Source = "manual"
	SourceCSV    Source = "csv"
	SourcePDF    Source = "pdf"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceCSV, SourcePDF:
		return true
	}
	return false
}

// Status is the lifecycle tag of a transaction. Only posted is modeled.
type Status string

const StatusPosted Status = "posted"

// DateFormat is the day-granularity layout used wherever a transaction date
// is serialized or hashed.
const DateFormat = "2006-01-02"

// Transaction is a ledger record, or a candidate for one before persistence.
type Transaction struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"` // empty at parse time for statement-derived records
	Date            time.Time `json:"date"`
	Label           string    `json:"label"` // original extracted text
	NormalizedLabel string    `json:"normalized_label"`
	AmountMinor     int64     `json:"amount_minor"` // cents; positive = income, negative = expense
	Category        Category  `json:"category"`
	Source          Source    `json:"source"`
	BankReference   string    `json:"bank_reference,omitempty"`
	DedupeHash      string    `json:"dedupe_hash"`
	RawFingerprint  string    `json:"raw_fingerprint"`
	Status          Status    `json:"status"`
	Currency        string    `json:"currency"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at,omitzero"` // set for manual entries only
}

// IsIncome reports whether the transaction credits the account.
func (t Transaction) IsIncome() bool {
	return t.AmountMinor > 0
}

// Amount returns the unsigned display amount, abs(AmountMinor)/100.
func (t Transaction) Amount() decimal.Decimal {
	v := t.AmountMinor
	if v < 0 {
		v = -v
	}
	return decimal.New(v, -2)
}

// DateKey returns the transaction date truncated to the day.
func (t Transaction) DateKey() string {
	return t.Date.Format(DateFormat)
}

// Day truncates tm to midnight UTC of its calendar day.
func Day(tm time.Time) time.Time {
	return time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC)
}
