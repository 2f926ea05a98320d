package accounts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/releve-dev/releve/internal/model"
)

const (
	numFields   = 6
	colID       = 0
	colName     = 1
	colType     = 2
	colCurrency = 3
	colLastFour = 4
	colDefault  = 5
)

var header = []string{"account_id", "name", "type", "currency", "last_four", "is_default"}

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colCurrency] = acct.Currency
	row[colLastFour] = acct.LastFour
	row[colDefault] = strconv.FormatBool(acct.IsDefault)
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colID] == "" {
		return model.Account{}, errors.New("empty account_id")
	}

	var isDefault bool
	if record[colDefault] != "" {
		v, err := strconv.ParseBool(record[colDefault])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing is_default %q: %w", record[colDefault], err)
		}
		isDefault = v
	}

	return model.Account{
		ID:        record[colID],
		Name:      record[colName],
		Type:      model.AccountType(record[colType]),
		Currency:  record[colCurrency],
		LastFour:  record[colLastFour],
		IsDefault: isDefault,
	}, nil
}
