package domain

import "math"

// Round2 rounds an amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsWholeUnit reports whether an amount has no fractional component.
func IsWholeUnit(v float64) bool {
	return v == math.Trunc(v)
}

// MinimumAcceptable computes the smallest bid that beats currentHighest.
// When cents are disallowed bids advance in whole currency units:
// floor(currentHighest) + 1. When allowed, the next bid must exceed the
// current one by at least a cent.
func MinimumAcceptable(currentHighest float64, allowCents bool) float64 {
	if allowCents {
		return Round2(currentHighest + 0.01)
	}
	return math.Floor(currentHighest) + 1
}
