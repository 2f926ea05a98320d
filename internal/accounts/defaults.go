package accounts

import "github.com/releve-dev/releve/internal/model"

// DefaultAccounts returns the accounts written by `releve init`: a default
// checking account and a savings account in currency.
func DefaultAccounts(currency string) []model.Account {
	if currency == "" {
		currency = "EUR"
	}
	return []model.Account{
		{ID: "courant", Name: "Compte courant", Type: model.AccountTypeChecking, Currency: currency, IsDefault: true},
		{ID: "epargne", Name: "Livret", Type: model.AccountTypeSavings, Currency: currency},
	}
}
