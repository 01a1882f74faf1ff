package engine

import (
	"sort"
	"time"

	"github.com/dvloznov/creator-ledger/internal/domain"
)

// sortByDate orders transactions ascending by date in place. Upstream stores
// return newest-first; every detector walks time forward.
func sortByDate(txns []domain.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}

// filterSince returns the transactions dated at or after cutoff.
func filterSince(txns []domain.Transaction, cutoff time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if !t.Date.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// groupByPlatform buckets transactions by platform, preserving order.
func groupByPlatform(txns []domain.Transaction) map[string][]domain.Transaction {
	groups := make(map[string][]domain.Transaction)
	for _, t := range txns {
		groups[t.Platform] = append(groups[t.Platform], t)
	}
	return groups
}

// weekStart returns the Monday (UTC, midnight) of the ISO week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// amounts extracts the amount column.
func amounts(txns []domain.Transaction) []float64 {
	xs := make([]float64, len(txns))
	for i, t := range txns {
		xs[i] = t.Amount
	}
	return xs
}
