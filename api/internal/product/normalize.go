package product

import "math"

// Tolerance is how far the sum may drift from 100 before values are rescaled.
const Tolerance = 0.1

// float noise from summing one-decimal values, e.g. 33.3*3 = 99.89999999999999
const epsilon = 1e-9

// Total sums the percentages of all products.
func Total(products []DetectedProduct) float64 {
	var total float64
	for _, p := range products {
		total += float64(p.Percentage)
	}
	return total
}

// NeedsRescale reports whether products must be rescaled to sum to 100.
// Lists with a zero total can not be rescaled and are left alone.
func NeedsRescale(products []DetectedProduct) bool {
	total := Total(products)
	if len(products) == 0 || total == 0 {
		return false
	}
	drift := math.Abs(total - 100.0)
	if drift <= Tolerance+epsilon {
		return false
	}
	// Output of Normalize itself: every value on the 0.1 grid and the sum off
	// by no more than accumulated rounding. Rescaling it again would only
	// shuffle the last digit.
	if drift <= maxRoundingError*float64(len(products))+epsilon && onGrid(products) {
		return false
	}
	return true
}

// half of the 0.1 step
const maxRoundingError = 0.05

func onGrid(products []DetectedProduct) bool {
	for _, p := range products {
		v := float64(p.Percentage) * 10
		if math.Abs(v-math.Round(v)) > 1e-6 {
			return false
		}
	}
	return true
}

// Normalize rescales percentages so that they add up to 100, rounding each
// value to one decimal. Empty lists, all-zero lists, lists already within
// Tolerance of 100 and lists Normalize has already produced come back
// unchanged, so Normalize(Normalize(x)) == Normalize(x). The input slice is
// never modified.
func Normalize(products []DetectedProduct) []DetectedProduct {
	out := Clone(products)
	if len(out) == 0 {
		return out
	}
	if !NeedsRescale(out) {
		return out
	}
	factor := 100.0 / Total(out)
	for i := range out {
		out[i].Percentage = Percent(round1(float64(out[i].Percentage) * factor))
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
