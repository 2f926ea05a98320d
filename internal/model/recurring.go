package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the inferred period of a recurring group.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

// RecurringGroup is a cluster of expenses believed to be the same periodic
// charge. Groups are recomputed on every detection run; only the ignored
// flag is persisted, keyed by ID.
type RecurringGroup struct {
	ID                 string
	NormalizedLabel    string
	Members            []Transaction // sorted by date ascending
	Frequency          Frequency
	AverageAmountMinor int64 // unsigned
	AmountConsistent   bool
	LastDate           time.Time
	NextExpectedDate   time.Time
	IsActive           bool
	IsIgnored          bool
}

// AverageAmount returns the average member amount as a decimal.
func (g RecurringGroup) AverageAmount() decimal.Decimal {
	return decimal.New(g.AverageAmountMinor, -2)
}
