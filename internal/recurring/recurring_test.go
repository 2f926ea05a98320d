package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/releve-dev/releve/internal/id"
	"github.com/releve-dev/releve/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(date time.Time, lbl string, amount int64) model.Transaction {
	t := model.Transaction{Date: date, Label: lbl, AmountMinor: amount, Source: model.SourceCSV}
	id.Stamp(&t)
	return t
}

func detectorAt(now time.Time) *Detector {
	d := NewDetector(DefaultConfig())
	d.Now = func() time.Time { return now }
	return d
}

func TestDetect_MonthlySubscription(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 3), "VIR SALAIRE ACME", 320000),
		tx(day(2025, 1, 5), "PRLV NETFLIX.COM", -1599),
		tx(day(2025, 1, 9), "CB BOULANGERIE", -450),
		tx(day(2025, 2, 3), "VIR SALAIRE ACME", 320000),
		tx(day(2025, 2, 5), "PRLV NETFLIX.COM", -1599),
		tx(day(2025, 3, 5), "PRLV NETFLIX.COM", -1599),
		tx(day(2025, 4, 5), "PRLV NETFLIX.COM", -1599),
	}

	groups := detectorAt(day(2025, 4, 20)).Detect(txs, nil)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "prlv netflixcom", g.NormalizedLabel)
	assert.Equal(t, id.GroupID("prlv netflixcom"), g.ID)
	assert.Equal(t, model.FrequencyMonthly, g.Frequency)
	assert.Equal(t, int64(1599), g.AverageAmountMinor)
	assert.Equal(t, "15.99", g.AverageAmount().StringFixed(2))
	assert.True(t, g.AmountConsistent)
	assert.Equal(t, day(2025, 4, 5), g.LastDate)
	assert.Equal(t, day(2025, 5, 5), g.NextExpectedDate)
	assert.True(t, g.IsActive)
	assert.False(t, g.IsIgnored)
	require.Len(t, g.Members, 4)
	assert.Equal(t, day(2025, 1, 5), g.Members[0].Date)
}

func TestDetect_SeparatesSimilarSubscriptions(t *testing.T) {
	var txs []model.Transaction
	for m := time.January; m <= time.April; m++ {
		txs = append(txs,
			tx(day(2025, m, 5), "Netflix abonnement", -1599),
			tx(day(2025, m, 7), "Spotify abonnement", -1099),
		)
	}

	groups := detectorAt(day(2025, 4, 20)).Detect(txs, nil)
	require.Len(t, groups, 2)
	assert.Equal(t, "netflix abonnement", groups[0].NormalizedLabel)
	assert.Equal(t, "spotify abonnement", groups[1].NormalizedLabel)
	assert.Len(t, groups[0].Members, 4)
	assert.Len(t, groups[1].Members, 4)
}

func TestDetect_InvoiceNumbersGroupTogether(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 12), "PRLV EDF FACTURE 100234 12/01", -6200),
		tx(day(2025, 2, 12), "PRLV EDF FACTURE 100987 12/02", -6400),
		tx(day(2025, 3, 12), "PRLV EDF FACTURE 101456 12/03", -6100),
	}

	groups := detectorAt(day(2025, 4, 1)).Detect(txs, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, "prlv edf facture", groups[0].NormalizedLabel)
	assert.Equal(t, int64(6233), groups[0].AverageAmountMinor)
}

func TestDetect_MonthlyInconsistentAmountsDiscarded(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 1), "CB CARREFOUR", -1000),
		tx(day(2025, 1, 31), "CB CARREFOUR", -1000),
		tx(day(2025, 3, 2), "CB CARREFOUR", -2000),
	}
	assert.Empty(t, detectorAt(day(2025, 3, 10)).Detect(txs, nil))
}

func TestDetect_QuarterlyKeepsInconsistentAmounts(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 10), "ASSURANCE AUTO", -30000),
		tx(day(2025, 4, 10), "ASSURANCE AUTO", -50000),
	}

	groups := detectorAt(day(2025, 4, 20)).Detect(txs, nil)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, model.FrequencyQuarterly, g.Frequency)
	assert.False(t, g.AmountConsistent)
	assert.Equal(t, int64(40000), g.AverageAmountMinor)
	assert.Equal(t, day(2025, 7, 10), g.NextExpectedDate)
	assert.True(t, g.IsActive)
}

func TestDetect_Annual(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2024, 3, 1), "COTISATION CARTE VISA", -4500),
		tx(day(2025, 3, 1), "COTISATION CARTE VISA", -4500),
	}

	groups := detectorAt(day(2025, 4, 20)).Detect(txs, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, model.FrequencyAnnual, groups[0].Frequency)
	assert.Equal(t, day(2026, 3, 1), groups[0].NextExpectedDate)
	assert.True(t, groups[0].IsActive)
}

func TestDetect_Lapsed(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2024, 10, 5), "SALLE DE SPORT", -2990),
		tx(day(2024, 11, 5), "SALLE DE SPORT", -2990),
		tx(day(2024, 12, 5), "SALLE DE SPORT", -2990),
	}

	groups := detectorAt(day(2025, 4, 20)).Detect(txs, nil)
	require.Len(t, groups, 1)
	assert.False(t, groups[0].IsActive)
}

func TestDetect_DiscardsIrregularAndSingletons(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 1), "CB PHARMACIE", -800),
		tx(day(2025, 1, 11), "CB PHARMACIE", -800),
		tx(day(2025, 2, 1), "CB FNAC", -4999),
		tx(day(2025, 2, 1), "1234", -100),
		tx(day(2025, 3, 1), "1234", -100),
	}
	assert.Empty(t, detectorAt(day(2025, 3, 1)).Detect(txs, nil))
}

func TestDetect_IgnoredFlag(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 5), "PRLV NETFLIX.COM", -1599),
		tx(day(2025, 2, 5), "PRLV NETFLIX.COM", -1599),
		tx(day(2025, 1, 7), "Spotify", -1099),
		tx(day(2025, 2, 7), "Spotify", -1099),
	}

	groups := detectorAt(day(2025, 2, 20)).Detect(txs, []string{id.GroupID("spotify")})
	require.Len(t, groups, 2)
	assert.False(t, groups[0].IsIgnored)
	assert.Equal(t, "spotify", groups[1].NormalizedLabel)
	assert.True(t, groups[1].IsIgnored)
}

func TestDetect_ZeroConfigUsesDefaults(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 5), "Netflix", -1599),
		tx(day(2025, 2, 5), "Netflix", -1599),
	}
	d := &Detector{Now: func() time.Time { return day(2025, 2, 10) }}
	assert.Len(t, d.Detect(txs, nil), 1)
}

func TestDetect_PartialConfigKeepsOtherDefaults(t *testing.T) {
	txs := []model.Transaction{
		tx(day(2025, 1, 5), "Netflix", -1599),
		tx(day(2025, 2, 5), "Netflix", -1650),
		tx(day(2025, 3, 5), "Netflix", -1599),
	}
	d := NewDetector(Config{SimilarityThreshold: 0.8})
	d.Now = func() time.Time { return day(2025, 3, 20) }

	groups := d.Detect(txs, nil)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].AmountConsistent)
	assert.True(t, groups[0].IsActive)
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{SimilarityThreshold: 0.8, AnnualWindowDays: 500}.WithDefaults()
	assert.Equal(t, Config{
		SimilarityThreshold: 0.8,
		AmountVariance:      0.20,
		MonthlyWindowDays:   45,
		QuarterlyWindowDays: 120,
		AnnualWindowDays:    500,
	}, got)
	assert.Equal(t, DefaultConfig(), Config{}.WithDefaults())
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"netflix", "netflix", 1},
		{"netflix", "prlv netflix", 7.0 / 12.0},
		{"amazon prime video", "amazon prime", 12.0 / 18.0},
		{"netflix abonnement", "spotify abonnement", 0.5},
		{"free mobile forfait", "free forfait", 1},
		{"edf", "gdf suez", 0},
		{"", "netflix", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Similarity(tt.b, tt.a), 1e-9)
		})
	}
}
