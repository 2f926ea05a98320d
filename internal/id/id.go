// Package id derives transaction IDs, dedupe fingerprints and recurring
// group IDs. Every producer (delimited, document and manual ingestion) must
// go through this package: a second implementation that differs by a single
// byte breaks deduplication against previously imported ledgers.
package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/releve-dev/releve/internal/label"
	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/money"
)

const (
	txPrefix          = "tx_"
	fingerprintPrefix = "fp_"
	groupPrefix       = "rec_"
	fieldSep          = "|"
)

// Hash32 is the 32-bit rolling string hash used for every identifier.
//
// For each UTF-16 code unit c of s: h = h*31 + c, wrapping to signed
// 32 bits. The result is the absolute value of h (computed in 64 bits, so
// math.MinInt32 yields 0x80000000), hex-encoded in lowercase and
// zero-padded to 8 characters. The output must stay byte-identical across
// versions.
func Hash32(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return fmt.Sprintf("%08x", v)
}

// TransactionID returns "tx_<source>_<hash>" over the day, the ID label
// (normalized, 50 runes), the absolute amount with two decimals and the
// source, in that order.
func TransactionID(date time.Time, rawLabel string, amountMinor int64, source model.Source) string {
	key := strings.Join([]string{
		date.Format(model.DateFormat),
		label.ForID(rawLabel),
		money.FormatAbs(amountMinor),
		string(source),
	}, fieldSep)
	return txPrefix + string(source) + "_" + Hash32(key)
}

// ManualTransactionID appends a base-36 creation timestamp (milliseconds)
// to the manual transaction ID so identical entries made the same day do
// not collide.
func ManualTransactionID(date time.Time, rawLabel string, amountMinor int64, createdAt time.Time) string {
	base := TransactionID(date, rawLabel, amountMinor, model.SourceManual)
	return base + "_" + strconv.FormatInt(createdAt.UnixMilli(), 36)
}

// FingerprintInput holds the fields, in hashing order, of a dedupe
// fingerprint.
type FingerprintInput struct {
	AccountID       string
	Date            time.Time
	AmountMinor     int64
	NormalizedLabel string
	BankReference   string
	Source          model.Source
}

// Fingerprint returns "fp_<hash>" for the given input.
func Fingerprint(in FingerprintInput) string {
	key := strings.Join([]string{
		in.AccountID,
		in.Date.Format(model.DateFormat),
		strconv.FormatInt(in.AmountMinor, 10),
		in.NormalizedLabel,
		in.BankReference,
		string(in.Source),
	}, fieldSep)
	return fingerprintPrefix + Hash32(key)
}

// FingerprintOf computes the fingerprint of an existing transaction.
func FingerprintOf(tx model.Transaction) string {
	return Fingerprint(FingerprintInput{
		AccountID:       tx.AccountID,
		Date:            tx.Date,
		AmountMinor:     tx.AmountMinor,
		NormalizedLabel: tx.NormalizedLabel,
		BankReference:   tx.BankReference,
		Source:          tx.Source,
	})
}

// GroupID returns the stable ID of a recurring group keyed by its
// recurrence-normalized label.
func GroupID(normalizedLabel string) string {
	return groupPrefix + Hash32(normalizedLabel)
}

// Stamp fills the derived fields of a candidate: normalized label,
// transaction ID when empty, and both fingerprint fields. Manual
// transactions get a timestamp-suffixed ID from CreatedAt.
func Stamp(tx *model.Transaction) {
	tx.Date = model.Day(tx.Date)
	tx.NormalizedLabel = label.Normalize(tx.Label)
	if tx.ID == "" {
		if tx.Source == model.SourceManual {
			tx.ID = ManualTransactionID(tx.Date, tx.Label, tx.AmountMinor, tx.CreatedAt)
		} else {
			tx.ID = TransactionID(tx.Date, tx.Label, tx.AmountMinor, tx.Source)
		}
	}
	Refingerprint(tx)
}

// Refingerprint recomputes DedupeHash and RawFingerprint, typically after
// the orchestrator assigned the target account.
func Refingerprint(tx *model.Transaction) {
	fp := FingerprintOf(*tx)
	tx.DedupeHash = fp
	tx.RawFingerprint = fp
}

// SourceOf extracts the source segment of a transaction ID, or "" when the
// ID is not in "tx_<source>_<hash>" form.
func SourceOf(txID string) model.Source {
	rest, ok := strings.CutPrefix(txID, txPrefix)
	if !ok {
		return ""
	}
	src, _, ok := strings.Cut(rest, "_")
	if !ok {
		return ""
	}
	return model.Source(src)
}
