package engine

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/stats"
)

// weeklyChangeThreshold is the fractional week-over-week swing (strict >)
// that makes a (platform, week) pair an anomaly candidate.
const weeklyChangeThreshold = 0.15

// weeklyCandidate is one above-threshold week-over-week swing awaiting the
// prior-event check.
type weeklyCandidate struct {
	Platform      string
	WeekStart     time.Time // week the swing landed in
	PrevTotal     float64
	CurrTotal     float64
	ChangePercent float64 // signed, in percent
}

// weeklyCandidates buckets transactions into (platform, ISO week) totals and
// walks each platform's weeks chronologically, comparing consecutive pairs.
// Zero-baseline weeks carry no signal and are skipped, never divided by.
func weeklyCandidates(txns []domain.Transaction) []weeklyCandidate {
	totals := make(map[string]map[time.Time]float64)
	for _, t := range txns {
		ws := weekStart(t.Date)
		if totals[t.Platform] == nil {
			totals[t.Platform] = make(map[time.Time]float64)
		}
		totals[t.Platform][ws] += t.Amount
	}

	platforms := make([]string, 0, len(totals))
	for p := range totals {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var candidates []weeklyCandidate
	for _, platform := range platforms {
		byWeek := totals[platform]
		weeks := make([]time.Time, 0, len(byWeek))
		for w := range byWeek {
			weeks = append(weeks, w)
		}
		sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

		for i := 1; i < len(weeks); i++ {
			prev := byWeek[weeks[i-1]]
			curr := byWeek[weeks[i]]

			change, ok := stats.PercentChange(prev, curr)
			if !ok {
				continue
			}
			if math.Abs(change) <= weeklyChangeThreshold {
				continue
			}
			candidates = append(candidates, weeklyCandidate{
				Platform:      platform,
				WeekStart:     weeks[i],
				PrevTotal:     prev,
				CurrTotal:     curr,
				ChangePercent: change * 100,
			})
		}
	}
	return candidates
}

// severityFor buckets |percent change| monotonically: >=50 critical,
// >=30 high, otherwise medium (candidates already cleared the 15% floor).
func severityFor(changePercent float64) domain.Severity {
	abs := math.Abs(changePercent)
	switch {
	case abs >= 50:
		return domain.SeverityCritical
	case abs >= 30:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// eventKey is the dedup key for the batched prior-event lookup.
func eventKey(platform string, week time.Time) string {
	return platform + "|" + week.Format("2006-01-02")
}
