// Package categorize assigns categories to transactions from keyword rules.
package categorize

import (
	"strings"

	"github.com/releve-dev/releve/internal/label"
	"github.com/releve-dev/releve/internal/model"
)

// Categorizer matches normalized labels against keyword rules in order.
// The first matching rule wins; unmatched credits are income and unmatched
// debits are other.
type Categorizer struct {
	rules []model.CategoryRule
}

// New returns a categorizer over rules. Keywords are normalized once here.
func New(rules []model.CategoryRule) *Categorizer {
	c := &Categorizer{rules: make([]model.CategoryRule, 0, len(rules))}
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if n := label.Normalize(k); n != "" {
				kws = append(kws, n)
			}
		}
		r.Keywords = kws
		c.rules = append(c.rules, r)
	}
	return c
}

// Categorize returns the category for tx.
func (c *Categorizer) Categorize(tx model.Transaction) model.Category {
	n := tx.NormalizedLabel
	if n == "" {
		n = label.Normalize(tx.Label)
	}
	income := tx.IsIncome()
	for _, r := range c.rules {
		if r.IncomeOnly && !income || r.ExpenseOnly && income {
			continue
		}
		for _, k := range r.Keywords {
			if strings.Contains(n, k) {
				return r.Category
			}
		}
	}
	if income {
		return model.CategoryIncome
	}
	return model.CategoryOther
}

// DefaultRules is the rule set written by `releve init`.
func DefaultRules() []model.CategoryRule {
	return []model.CategoryRule{
		{Category: model.CategoryIncome, Keywords: []string{"salaire", "salary", "paie", "remboursement", "caf"}, IncomeOnly: true},
		{Category: model.CategoryTransfer, Keywords: []string{"virement interne", "vir interne", "transfer to", "epargne"}},
		{Category: model.CategoryHousing, Keywords: []string{"loyer", "rent", "syndic", "assurance habitation", "credit immobilier"}},
		{Category: model.CategorySubscriptions, Keywords: []string{"netflix", "spotify", "deezer", "disney", "amazon prime", "canal", "abonnement", "icloud"}},
		{Category: model.CategoryUtilities, Keywords: []string{"edf", "engie", "veolia", "orange", "sfr", "bouygues", "free mobile", "electricite"}},
		{Category: model.CategoryFood, Keywords: []string{"carrefour", "leclerc", "auchan", "lidl", "monoprix", "franprix", "boulangerie", "restaurant", "uber eats", "deliveroo"}},
		{Category: model.CategoryTransport, Keywords: []string{"sncf", "ratp", "navigo", "total energies", "essence", "uber", "blablacar", "peage"}},
		{Category: model.CategoryHealth, Keywords: []string{"pharmacie", "docteur", "medecin", "mutuelle", "dentiste"}},
		{Category: model.CategoryShopping, Keywords: []string{"amazon", "fnac", "decathlon", "ikea", "zara"}},
		{Category: model.CategoryLeisure, Keywords: []string{"cinema", "ugc", "concert", "steam", "voyage"}},
	}
}
