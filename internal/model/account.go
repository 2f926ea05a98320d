package model

// AccountType classifies the user's bank accounts.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeCard     AccountType = "card"
	AccountTypeCash     AccountType = "cash"
)

// Account represents a row in accounts/accounts.csv.
type Account struct {
	ID        string
	Name      string
	Type      AccountType
	Currency  string
	LastFour  string
	IsDefault bool
}
