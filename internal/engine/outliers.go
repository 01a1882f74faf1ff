package engine

import (
	"fmt"
	"math"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/stats"
)

// outlierSigma is the z-score cutoff for flagging a transaction. Strictly
// greater-than: a transaction sitting exactly at 2 sigma is not flagged.
const outlierSigma = 2.0

// DetectOutliers flags trailing-30-day transactions whose amount deviates
// from the user's global mean by more than outlierSigma standard deviations.
// The mean and deviation come from the full window, candidates only from the
// recent slice. Returns nil when nothing is flagged.
func DetectOutliers(window, recent []domain.Transaction) *domain.Insight {
	if len(window) == 0 {
		return nil
	}

	xs := amounts(window)
	mean := stats.Mean(xs)
	sd := stats.StdDev(xs)

	var flagged []domain.FlaggedTransaction
	var largest float64
	for _, t := range recent {
		if math.Abs(t.Amount-mean) <= outlierSigma*sd {
			continue
		}
		deviation := 0.0
		if change, ok := stats.PercentChange(mean, t.Amount); ok {
			deviation = change * 100
		}
		flagged = append(flagged, domain.FlaggedTransaction{
			Platform:  t.Platform,
			Amount:    t.Amount,
			Date:      t.Date.Format("2006-01-02"),
			Deviation: deviation,
		})
		if t.Amount > largest {
			largest = t.Amount
		}
	}

	if len(flagged) == 0 {
		return nil
	}

	return &domain.Insight{
		Type:  domain.InsightAnomalyDetection,
		Title: "Unusual Transactions Detected",
		Description: fmt.Sprintf("%d transaction(s) significantly differ from your typical amounts. Largest: $%.0f",
			len(flagged), largest),
		Confidence: 0.85,
		Data:       map[string]interface{}{"anomalies": flagged},
	}
}
