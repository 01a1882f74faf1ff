package engine

import (
	"fmt"
	"html"
	"sort"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

// concentrationThreshold is the revenue share at which a single platform
// becomes a concentration risk. The comparison is >=, so exactly 70% fires.
const concentrationThreshold = 0.70

// DetectConcentrationRisk flags platforms whose share of the trailing-30-day
// revenue is at or above the threshold. With a single shared total at most
// one platform can exceed 70%, so in practice this emits at most one insight;
// the loop shape is kept deliberately general.
func DetectConcentrationRisk(recent []domain.Transaction) []*domain.Insight {
	totals := make(map[string]float64)
	var total float64
	for _, t := range recent {
		totals[t.Platform] += t.Amount
		total += t.Amount
	}
	if total == 0 {
		return nil
	}

	platforms := make([]string, 0, len(totals))
	for p := range totals {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var insights []*domain.Insight
	for _, platform := range platforms {
		amount := totals[platform]
		share := amount / total
		if share < concentrationThreshold {
			continue
		}
		percentage := share * 100
		safe := html.EscapeString(platform)
		insights = append(insights, &domain.Insight{
			Type:  domain.InsightConcentrationRisk,
			Title: "Revenue Concentration Risk Alert",
			Description: fmt.Sprintf(
				"%.1f%% of your revenue comes from %s. If %s changes policies or demonetizes, you could lose $%.0f/month. Diversification recommended.",
				percentage, safe, safe, amount),
			Confidence: 1.0,
			Data: map[string]interface{}{
				"platform":    platform,
				"percentage":  percentage,
				"monthlyRisk": amount,
			},
		})
	}
	return insights
}
