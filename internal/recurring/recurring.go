// Package recurring detects periodic charges in the ledger.
//
// Detection groups expenses by fuzzy label similarity, infers a period from
// the mean gap between occurrences and checks that amounts stay close to
// the group mean. Groups are recomputed from scratch on every run.
package recurring

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/label"
	"github.com/releve-dev/releve/internal/model"
)

// Config holds the detection thresholds.
type Config struct {
	// SimilarityThreshold is the score a label must exceed to join a group.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// AmountVariance is the allowed relative deviation from the group mean.
	AmountVariance float64 `yaml:"amount_variance"`
	// Staleness windows, in days since the last occurrence.
	MonthlyWindowDays   int `yaml:"monthly_window_days"`
	QuarterlyWindowDays int `yaml:"quarterly_window_days"`
	AnnualWindowDays    int `yaml:"annual_window_days"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.6,
		AmountVariance:      0.20,
		MonthlyWindowDays:   45,
		QuarterlyWindowDays: 120,
		AnnualWindowDays:    400,
	}
}

// WithDefaults fills every zero threshold from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.AmountVariance == 0 {
		c.AmountVariance = d.AmountVariance
	}
	if c.MonthlyWindowDays == 0 {
		c.MonthlyWindowDays = d.MonthlyWindowDays
	}
	if c.QuarterlyWindowDays == 0 {
		c.QuarterlyWindowDays = d.QuarterlyWindowDays
	}
	if c.AnnualWindowDays == 0 {
		c.AnnualWindowDays = d.AnnualWindowDays
	}
	return c
}

type gapRange struct {
	freq     model.Frequency
	min, max float64
}

var gapRanges = []gapRange{
	{model.FrequencyMonthly, 25, 35},
	{model.FrequencyQuarterly, 85, 100},
	{model.FrequencyAnnual, 350, 380},
}

// Detector finds recurring groups. Now defaults to time.Now.
type Detector struct {
	Config Config
	Now    func() time.Time
}

// NewDetector returns a detector with cfg.
func NewDetector(cfg Config) *Detector {
	return &Detector{Config: cfg, Now: time.Now}
}

type bucket struct {
	key     string
	members []model.Transaction
}

// Detect groups the expenses in txs and returns the periodic groups,
// largest average amount first. ignored holds group IDs flagged by the
// user; matching groups are returned with IsIgnored set.
func (d *Detector) Detect(txs []model.Transaction, ignored []string) []model.RecurringGroup {
	cfg := d.Config.WithDefaults()
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	today := model.Day(now())

	skip := make(map[string]struct{}, len(ignored))
	for _, g := range ignored {
		skip[g] = struct{}{}
	}

	var buckets []*bucket
	for _, tx := range txs {
		if tx.IsIncome() {
			continue
		}
		key := label.NormalizeForRecurrence(tx.Label)
		if key == "" {
			continue
		}
		placed := false
		for _, b := range buckets {
			if Similarity(key, b.key) > cfg.SimilarityThreshold {
				b.members = append(b.members, tx)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, &bucket{key: key, members: []model.Transaction{tx}})
		}
	}

	var groups []model.RecurringGroup
	for _, b := range buckets {
		g, ok := d.classify(cfg, b, today)
		if !ok {
			continue
		}
		_, g.IsIgnored = skip[g.ID]
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].AverageAmountMinor > groups[j].AverageAmountMinor
	})
	return groups
}

func (d *Detector) classify(cfg Config, b *bucket, today time.Time) (model.RecurringGroup, bool) {
	if len(b.members) < 2 {
		return model.RecurringGroup{}, false
	}

	members := make([]model.Transaction, len(b.members))
	copy(members, b.members)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Date.Before(members[j].Date) })

	freq, ok := frequencyOf(meanGapDays(members))
	if !ok {
		return model.RecurringGroup{}, false
	}

	mean := meanAmount(members)
	consistent := amountsConsistent(members, mean, cfg.AmountVariance)
	if freq == model.FrequencyMonthly && !consistent {
		return model.RecurringGroup{}, false
	}

	last := model.Day(members[len(members)-1].Date)
	window := cfg.MonthlyWindowDays
	next := last.AddDate(0, 1, 0)
	switch freq {
	case model.FrequencyQuarterly:
		window = cfg.QuarterlyWindowDays
		next = last.AddDate(0, 3, 0)
	case model.FrequencyAnnual:
		window = cfg.AnnualWindowDays
		next = last.AddDate(1, 0, 0)
	}

	return model.RecurringGroup{
		ID:                 id.GroupID(b.key),
		NormalizedLabel:    b.key,
		Members:            members,
		Frequency:          freq,
		AverageAmountMinor: mean.Round(0).IntPart(),
		AmountConsistent:   consistent,
		LastDate:           last,
		NextExpectedDate:   next,
		IsActive:           daysBetween(last, today) <= float64(window),
	}, true
}

func meanGapDays(members []model.Transaction) float64 {
	var total float64
	for i := 1; i < len(members); i++ {
		total += daysBetween(model.Day(members[i-1].Date), model.Day(members[i].Date))
	}
	return total / float64(len(members)-1)
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

func frequencyOf(gap float64) (model.Frequency, bool) {
	for _, r := range gapRanges {
		if gap >= r.min && gap <= r.max {
			return r.freq, true
		}
	}
	return "", false
}

// meanAmount is the exact mean of the unsigned member amounts, in cents.
func meanAmount(members []model.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range members {
		sum = sum.Add(decimal.NewFromInt(absMinor(m.AmountMinor)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(members))))
}

func amountsConsistent(members []model.Transaction, mean decimal.Decimal, variance float64) bool {
	limit := mean.Mul(decimal.NewFromFloat(variance))
	for _, m := range members {
		dev := decimal.NewFromInt(absMinor(m.AmountMinor)).Sub(mean).Abs()
		if dev.GreaterThan(limit) {
			return false
		}
	}
	return true
}

// Similarity scores two normalized labels in [0, 1]: 1 for equal labels,
// the length ratio when one contains the other, otherwise the share of the
// shorter label's words found inside a word of the longer one (or
// containing one).
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if strings.Contains(long, short) {
		return float64(utf8.RuneCountInString(short)) / float64(utf8.RuneCountInString(long))
	}

	sw, lw := strings.Fields(a), strings.Fields(b)
	if len(sw) > len(lw) {
		sw, lw = lw, sw
	}
	if len(sw) == 0 {
		return 0
	}
	matched := 0
	for _, w := range sw {
		for _, v := range lw {
			if strings.Contains(v, w) || strings.Contains(w, v) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(sw))
}

func absMinor(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
