package stablescore

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	// volatilityWindow is how many of the most recent rate changes feed the EWMA.
	volatilityWindow = 5
	// ewmaAlpha is the weight given to each older observation as the EWMA
	// walks from the most recent change backwards.
	ewmaAlpha = 0.3
	// pricingPenaltyPerUnit costs 5 points for every 1% below the market baseline.
	pricingPenaltyPerUnit = 500.0
)

var ratingNoise = regexp.MustCompile(`[^A-Z+\-]`)

// lossRatioGapScore maps claims/premiums onto a step function that favours
// low loss ratios. Returns nil when the market data cannot produce a ratio.
func lossRatioGapScore(premiums, claims *float64) *float64 {
	ratio, ok := lossRatio(premiums, claims)
	if !ok {
		return nil
	}

	var score float64
	switch {
	case ratio <= 0.75:
		score = 100
	case ratio <= 0.80:
		score = 95
	case ratio <= 0.86:
		score = 85
	case ratio <= 0.90:
		score = 75
	case ratio <= 0.95:
		score = 55
	default:
		score = 20
	}
	return &score
}

func lossRatio(premiums, claims *float64) (float64, bool) {
	if premiums == nil || claims == nil {
		return 0, false
	}
	p, c := *premiums, *claims
	if !isFinite(p) || !isFinite(c) || p <= 0 || c < 0 {
		return 0, false
	}
	return c / p, true
}

func lossRatioPercent(premiums, claims *float64) string {
	ratio, ok := lossRatio(premiums, claims)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// normalizeIncrease reads values above 1 as percentages.
func normalizeIncrease(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// recentIncreases returns the normalized, finite observations from the
// volatility window in chronological order.
func recentIncreases(history []RateIncrease) []float64 {
	start := len(history) - volatilityWindow
	if start < 0 {
		start = 0
	}

	out := make([]float64, 0, len(history)-start)
	for _, r := range history[start:] {
		if !isFinite(r.Increase) {
			continue
		}
		out = append(out, normalizeIncrease(r.Increase))
	}
	return out
}

// ewmaVolatility runs the EWMA over the window, most recent first. Rate
// decreases are dropped. Needs at least two usable observations.
func ewmaVolatility(history []RateIncrease) (float64, bool) {
	window := recentIncreases(history)

	increases := make([]float64, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] >= 0 {
			increases = append(increases, window[i])
		}
	}
	if len(increases) < 2 {
		return 0, false
	}

	ewma := increases[0]
	for _, x := range increases[1:] {
		ewma = ewmaAlpha*x + (1-ewmaAlpha)*ewma
	}
	return ewma, true
}

// rateVolatilityScore maps the EWMA of recent increases onto a step
// function. Sustained large increases score badly even when they are
// consistent from year to year.
func rateVolatilityScore(history []RateIncrease) *float64 {
	ewma, ok := ewmaVolatility(history)
	if !ok {
		return nil
	}

	var score float64
	switch {
	case ewma <= 0.03:
		score = 100
	case ewma <= 0.05:
		score = 80
	case ewma <= 0.08:
		score = 60
	case ewma <= 0.12:
		score = 40
	case ewma <= 0.15:
		score = 20
	default:
		score = 0
	}
	return &score
}

// averageIncreasePercent is the plain mean of the window, as a percentage.
func averageIncreasePercent(history []RateIncrease) *float64 {
	window := recentIncreases(history)
	if len(window) == 0 {
		return nil
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	avg := sum / float64(len(window)) * 100
	return &avg
}

// NormalizeRating uppercases a rating and strips everything except
// letters, '+' and '-'.
func NormalizeRating(rating string) string {
	return ratingNoise.ReplaceAllString(strings.ToUpper(rating), "")
}

// financialBufferScore flattens the rating scale: every A tier is equal and
// only B-tier and below are differentiated.
func financialBufferScore(rating string) float64 {
	r := NormalizeRating(rating)
	switch {
	case strings.HasPrefix(r, "A"):
		return 90
	case strings.HasPrefix(r, "B++"):
		return 75
	case strings.HasPrefix(r, "B+"):
		return 70
	case strings.HasPrefix(r, "B"):
		return 60
	default:
		return 40
	}
}

// MarketBaseline averages the cheapest half (rounded up) of the given
// established prices. Non-positive and non-finite prices are ignored.
// Returns false when no usable price remains.
func MarketBaseline(prices []float64) (float64, bool) {
	sorted := make([]float64, 0, len(prices))
	for _, p := range prices {
		if isFinite(p) && p > 0 {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return 0, false
	}
	sort.Float64s(sorted)

	half := int(math.Ceil(float64(len(sorted)) / 2))
	var sum float64
	for _, p := range sorted[:half] {
		sum += p
	}
	return sum / float64(half), true
}

// pricingAggressionScore penalizes new entrants priced below the market
// baseline, presuming the gap is an unsustainable teaser rate.
func pricingAggressionScore(price float64, peers []float64) float64 {
	if !isFinite(price) || price <= 0 {
		return 100
	}

	baseline, ok := MarketBaseline(peers)
	if !ok || price >= baseline {
		return 100
	}

	percentBelow := (baseline - price) / baseline
	return clamp(100-percentBelow*pricingPenaltyPerUnit, 0, 100)
}
