package analytics

import "math"

// The metric functions return 0.0 for any invalid input (null operands,
// zero/non-positive denominators) rather than null. The sentinel is uniform
// across all three so downstream aggregates see one policy.

// PercentChange computes the percent change from prev to curr.
// Returns 0.0 when either operand is null or prev is zero.
func PercentChange(prev, curr *float64) float64 {
	if prev == nil || curr == nil {
		return 0.0
	}
	if *prev == 0 {
		return 0.0
	}
	return ((*curr - *prev) / *prev) * 100.0
}

// Volatility computes |curr-prev| / ((curr+prev)/2) * 100, rounded to 4
// decimal places. Returns 0.0 when either operand is null or non-positive.
func Volatility(curr, prev *float64) float64 {
	if curr == nil || prev == nil {
		return 0.0
	}
	if *curr <= 0 || *prev <= 0 {
		return 0.0
	}
	average := (*curr + *prev) / 2.0
	if average == 0 {
		return 0.0
	}
	return Round(math.Abs(*curr-*prev)/average*100.0, 4)
}

// Normalize scales v into [0,1] against the observed min and max.
// A degenerate range (min == max) maps everything to 0.5.
func Normalize(v, min, max float64) float64 {
	if min == max {
		return 0.5
	}
	return (v - min) / (max - min)
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
