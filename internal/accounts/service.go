package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/releve-dev/releve/internal/model"
)

var (
	// ErrNoAccount means no account matches the hint, or none is configured.
	ErrNoAccount = errors.New("no matching account")
	// ErrAmbiguousAccount means several accounts match and none is default.
	ErrAmbiguousAccount = errors.New("ambiguous account")
)

// Service provides in-memory lookup over the configured accounts.
type Service struct {
	accounts []model.Account
	byID     map[string]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID}
}

// Load reads accounts/accounts.csv from a repo root and returns a Service.
func Load(repoRoot string) (*Service, error) {
	path := filepath.Join(repoRoot, "accounts", "accounts.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Default returns the account flagged is_default, if any.
func (s *Service) Default() (model.Account, bool) {
	for _, a := range s.accounts {
		if a.IsDefault {
			return a, true
		}
	}
	return model.Account{}, false
}

// Resolve picks the target account of an import. A non-empty hint must
// match an account ID, a name (case-insensitive) or the last four digits.
// An empty hint selects the default account, or the only account.
func (s *Service) Resolve(hint string) (model.Account, error) {
	hint = strings.TrimSpace(hint)
	if hint != "" {
		if a, ok := s.byID[hint]; ok {
			return a, nil
		}
		var matches []model.Account
		for _, a := range s.accounts {
			if strings.EqualFold(a.Name, hint) || a.LastFour != "" && a.LastFour == hint {
				matches = append(matches, a)
			}
		}
		switch len(matches) {
		case 0:
			return model.Account{}, fmt.Errorf("%w: %q", ErrNoAccount, hint)
		case 1:
			return matches[0], nil
		default:
			return model.Account{}, fmt.Errorf("%w: %q matches %d accounts", ErrAmbiguousAccount, hint, len(matches))
		}
	}

	if a, ok := s.Default(); ok {
		return a, nil
	}
	switch len(s.accounts) {
	case 0:
		return model.Account{}, ErrNoAccount
	case 1:
		return s.accounts[0], nil
	default:
		return model.Account{}, fmt.Errorf("%w: %d accounts and no default", ErrAmbiguousAccount, len(s.accounts))
	}
}

// Save writes the accounts to accounts/accounts.csv.
func (s *Service) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, "accounts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	path := filepath.Join(dir, "accounts.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return nil
}
