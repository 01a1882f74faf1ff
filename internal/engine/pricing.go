package engine

import (
	"fmt"
	"html"
	"sort"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/stats"
)

const (
	// pricingMinSamples is the minimum category size worth averaging at all;
	// pricingMinFrequency (strict >) is the demand signal that justifies a
	// repricing suggestion.
	pricingMinSamples   = 5
	pricingMinFrequency = 8

	// pricingIncrease is the suggested raise on the category average.
	pricingIncrease = 0.25

	// adRevenueCategory is platform-priced, never creator-priced, and must
	// never be suggested for repricing.
	adRevenueCategory = "ad_revenue"
)

// SuggestPricing proposes a price increase for every high-frequency category
// in the trailing 30 days, excluding ad revenue.
func SuggestPricing(recent []domain.Transaction) []*domain.Insight {
	groups := make(map[string][]float64)
	for _, t := range recent {
		groups[t.Category] = append(groups[t.Category], t.Amount)
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var insights []*domain.Insight
	for _, category := range categories {
		xs := groups[category]
		if len(xs) < pricingMinSamples {
			continue
		}
		frequency := len(xs)
		if frequency <= pricingMinFrequency || category == adRevenueCategory {
			continue
		}

		avg := stats.Mean(xs)
		suggested := avg * (1 + pricingIncrease)
		safe := html.EscapeString(category)

		insights = append(insights, &domain.Insight{
			Type:  domain.InsightPricingSuggestion,
			Title: fmt.Sprintf("Pricing Opportunity: %s", safe),
			Description: fmt.Sprintf(
				"You have %d %s transactions averaging $%.0f. Consider raising prices by 25%% to $%.0f. Expected net revenue increase: +20-33%%.",
				frequency, safe, avg, suggested),
			Confidence: 0.73,
			Data: map[string]interface{}{
				"category":         category,
				"currentAverage":   avg,
				"suggestedPrice":   suggested,
				"transactionCount": frequency,
			},
		})
	}
	return insights
}
