// Package stats is the small numeric kernel shared by every detector.
// All functions are pure; callers are responsible for minimum-sample-size
// guards before calling (the kernel never sees an empty slice in practice).
package stats

import (
	"math"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs (divide by N, not
// N-1; the forecaster's confidence calibration depends on this), or 0 for
// an empty slice.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// ZScore returns how many standard deviations x lies from mean. A zero sd
// yields 0 rather than Inf/NaN.
func ZScore(x, mean, sd float64) float64 {
	if sd == 0 {
		return 0
	}
	return (x - mean) / sd
}

// PercentChange returns the fractional change from from to to. A zero
// baseline has no defined change; ok is false and callers treat the pair as
// carrying no signal. This is the single zero-baseline convention for the
// whole engine.
func PercentChange(from, to float64) (change float64, ok bool) {
	if from == 0 {
		return 0, false
	}
	return (to - from) / from, true
}
