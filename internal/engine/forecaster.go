package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/stats"
)

const (
	// minPayoutObservations is the smallest platform history that supports a
	// variance estimate. Platforms below it are excluded from the forecast.
	minPayoutObservations = 2

	confidenceFloor   = 0.60
	confidenceCeiling = 0.95
)

// ForecastPayouts predicts the next payout per platform from the full
// transaction window and aggregates the predictions into one
// cashflow_forecast insight. Returns nil when no platform has enough
// observations.
func ForecastPayouts(txns []domain.Transaction, now time.Time) *domain.Insight {
	groups := groupByPlatform(txns)

	platforms := make([]string, 0, len(groups))
	for p := range groups {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var predictions []domain.PayoutPrediction
	for _, platform := range platforms {
		payouts := groups[platform]
		if len(payouts) < minPayoutObservations {
			continue
		}

		xs := amounts(payouts)
		avg := stats.Mean(xs)
		sd := stats.StdDev(xs)

		days := make([]float64, len(payouts))
		for i, p := range payouts {
			days[i] = float64(p.Date.Day())
		}
		typicalDay := int(math.Round(stats.Mean(days)))

		predictions = append(predictions, domain.PayoutPrediction{
			Platform:           platform,
			PredictedAmount:    avg,
			ConfidenceInterval: sd * 1.96,
			PredictedDate:      nextPayoutDate(now, typicalDay).Format("2006-01-02"),
			Confidence:         payoutConfidence(avg, sd),
		})
	}

	if len(predictions) == 0 {
		return nil
	}

	var total, confSum float64
	for _, p := range predictions {
		total += p.PredictedAmount
		confSum += p.Confidence
	}

	return &domain.Insight{
		Type:  domain.InsightCashflowForecast,
		Title: "Upcoming Payout Predictions",
		Description: fmt.Sprintf("Predicted %d upcoming payouts. Total expected: $%.0f",
			len(predictions), total),
		Confidence: confSum / float64(len(predictions)),
		Data:       map[string]interface{}{"predictions": predictions},
	}
}

// payoutConfidence maps the coefficient of variation into [0.60, 0.95].
// A zero average (all-zero payouts) carries no information and sits at the
// floor.
func payoutConfidence(avg, sd float64) float64 {
	if avg == 0 {
		return confidenceFloor
	}
	c := 1 - sd/avg
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeiling {
		return confidenceCeiling
	}
	return c
}

// nextPayoutDate is the typical payout day in the month after now, clamped
// to the target month's length so a day-31 history never skews into the
// month after next.
func nextPayoutDate(now time.Time, day int) time.Time {
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if day < 1 {
		day = 1
	}
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC)
}
