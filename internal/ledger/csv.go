package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/releve-dev/releve/internal/model"
	"github.com/releve-dev/releve/internal/money"
)

// Header is the CSV header for ledger.csv.
const Header = "id,account_id,date,label,normalized_label,amount,category,source,bank_reference,dedupe_hash,raw_fingerprint,status,currency,tags,created_at"

const (
	numFields      = 15
	colID          = 0
	colAcctID      = 1
	colDate        = 2
	colLabel       = 3
	colNormLabel   = 4
	colAmount      = 5
	colCategory    = 6
	colSource      = 7
	colBankRef     = 8
	colDedupe      = 9
	colFingerprint = 10
	colStatus      = 11
	colCurrency    = 12
	colTags        = 13
	colCreatedAt   = 14
)

// tagSep joins tags inside the tags column.
const tagSep = "|"

// ReadTransactions reads all transactions from a ledger.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txs []model.Transaction
	for i, rec := range records[1:] {
		tx, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// WriteTransactions writes txs to a ledger.csv writer (including header).
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(tx model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = tx.ID
	row[colAcctID] = tx.AccountID
	row[colDate] = tx.Date.Format(model.DateFormat)
	row[colLabel] = tx.Label
	row[colNormLabel] = tx.NormalizedLabel
	row[colAmount] = money.FormatPlain(tx.AmountMinor)
	row[colCategory] = string(tx.Category)
	row[colSource] = string(tx.Source)
	row[colBankRef] = tx.BankReference
	row[colDedupe] = tx.DedupeHash
	row[colFingerprint] = tx.RawFingerprint
	row[colStatus] = string(tx.Status)
	row[colCurrency] = tx.Currency
	row[colTags] = strings.Join(tx.Tags, tagSep)
	if !tx.CreatedAt.IsZero() {
		row[colCreatedAt] = tx.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(model.DateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := money.ParseAmount(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var createdAt time.Time
	if record[colCreatedAt] != "" {
		createdAt, err = time.Parse(time.RFC3339Nano, record[colCreatedAt])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	tags := []string{}
	if record[colTags] != "" {
		tags = strings.Split(record[colTags], tagSep)
	}

	return model.Transaction{
		ID:              record[colID],
		AccountID:       record[colAcctID],
		Date:            date,
		Label:           record[colLabel],
		NormalizedLabel: record[colNormLabel],
		AmountMinor:     amount,
		Category:        model.Category(record[colCategory]),
		Source:          model.Source(record[colSource]),
		BankReference:   record[colBankRef],
		DedupeHash:      record[colDedupe],
		RawFingerprint:  record[colFingerprint],
		Status:          model.Status(record[colStatus]),
		Currency:        record[colCurrency],
		Tags:            tags,
		CreatedAt:       createdAt,
	}, nil
}
