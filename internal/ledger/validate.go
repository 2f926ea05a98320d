package ledger

import (
	"fmt"
	"strings"

	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant     int
	TransactionID string
	Description   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.TransactionID, e.Description)
}

// AccountChecker tests whether an account ID is configured.
type AccountChecker interface {
	Exists(id string) bool
}

// Validate enforces the ledger invariants. A nil accounts checker skips
// the account check.
//
//  1. amounts are non-zero
//  2. the ID prefix names the transaction source
//  3. the fingerprint recomputes from the stored fields
//  4. dedupe hash equals raw fingerprint
//  5. IDs are unique
//  6. account IDs are known
func Validate(txs []model.Transaction, accounts AccountChecker) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(txs))

	for _, tx := range txs {
		if tx.AmountMinor == 0 {
			errs = append(errs, ValidationError{
				Invariant:     1,
				TransactionID: tx.ID,
				Description:   "amount is zero",
			})
		}

		if !tx.Source.Valid() || id.SourceOf(tx.ID) != tx.Source {
			errs = append(errs, ValidationError{
				Invariant:     2,
				TransactionID: tx.ID,
				Description:   fmt.Sprintf("id does not match source %q", tx.Source),
			})
		}

		if want := id.FingerprintOf(tx); tx.RawFingerprint != want {
			errs = append(errs, ValidationError{
				Invariant:     3,
				TransactionID: tx.ID,
				Description:   fmt.Sprintf("fingerprint %s, expected %s", tx.RawFingerprint, want),
			})
		}

		if tx.DedupeHash != tx.RawFingerprint {
			errs = append(errs, ValidationError{
				Invariant:     4,
				TransactionID: tx.ID,
				Description:   "dedupe hash differs from raw fingerprint",
			})
		}

		if seen[tx.ID] {
			errs = append(errs, ValidationError{
				Invariant:     5,
				TransactionID: tx.ID,
				Description:   "duplicate id",
			})
		}
		seen[tx.ID] = true

		if accounts != nil && !accounts.Exists(tx.AccountID) {
			errs = append(errs, ValidationError{
				Invariant:     6,
				TransactionID: tx.ID,
				Description:   fmt.Sprintf("unknown account %q", tx.AccountID),
			})
		}
	}
	return errs
}

// joinErrors folds validation errors into one error, or nil.
func joinErrors(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
