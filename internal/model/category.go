package model

// Category is assigned by the categorizer during ingestion.
type Category string

const (
	CategoryIncome        Category = "income"
	CategoryHousing       Category = "housing"
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategorySubscriptions Category = "subscriptions"
	CategoryUtilities     Category = "utilities"
	CategoryShopping      Category = "shopping"
	CategoryHealth        Category = "health"
	CategoryLeisure       Category = "leisure"
	CategoryTransfer      Category = "transfer"
	CategoryOther         Category = "other"
)

// CategoryRule maps label keywords to a category. Keywords are compared
// against the normalized label, so they should be lowercase and unaccented.
type CategoryRule struct {
	Category Category `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	// IncomeOnly restricts the rule to credits, ExpenseOnly to debits.
	IncomeOnly  bool `yaml:"income_only,omitempty" json:"income_only,omitempty"`
	ExpenseOnly bool `yaml:"expense_only,omitempty" json:"expense_only,omitempty"`
}
