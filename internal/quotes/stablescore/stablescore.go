// Package stablescore computes the StableScore for Medicare Supplement quotes.
//
// A StableScore is a 0-100 estimate of how stable a quote's price is likely
// to stay. Carriers with enough rate history are scored on their track record
// (loss ratio, rate volatility, financial strength); carriers without it are
// scored on how aggressively they undercut the established market.
//
// Every function in this package is pure: no I/O, no shared state, safe to
// call from any number of goroutines.
package stablescore

import (
	"math"
)

// Model identifies which algorithm produced a score.
type Model string

const (
	ModelEstablished Model = "established"
	ModelNewEntrant  Model = "new-entrant"
)

const (
	// MaturityThreshold is the number of observed annual rate changes a
	// carrier needs before it is scored as established.
	MaturityThreshold = 3

	// New-entrant weights are fixed; no re-weighting applies.
	newEntrantPricingWeight   = 0.90
	newEntrantFinancialWeight = 0.10

	// teaserThreshold flags a pricing-aggression score below it as a teaser rate.
	teaserThreshold = 50.0
)

// Component names used in WeightsUsed.
const (
	ComponentLossRatioGap      = "lossRatioGap"
	ComponentRateVolatility    = "rateVolatility"
	ComponentRiskPoolStability = "riskPoolStability"
	ComponentFinancialBuffer   = "financialBuffer"
	ComponentPricingAggression = "pricingAggression"
)

// RateIncrease is one historical annual rate change. Increase is either a
// fraction (0.06) or a percentage (6); values above 1 are read as percent.
type RateIncrease struct {
	Increase float64 `json:"increase"`
	Date     string  `json:"date,omitempty"`
}

// Input is everything the engine needs to score one quote.
type Input struct {
	// RateIncreases is chronological; the last element is the most recent.
	RateIncreases []RateIncrease
	// Premiums and Claims are aggregate market dollars used for the loss ratio.
	Premiums *float64
	Claims   *float64
	// Rating is the carrier's financial-strength rating, free-form.
	Rating string
	// MonthlyPremium is the quote's price in dollars.
	MonthlyPremium float64
	// PeerEstablishedPrices are monthly premiums of established carriers in
	// the same quote set. Only used for new entrants.
	PeerEstablishedPrices []float64
}

// Components holds the sub-scores that were actually computed.
type Components struct {
	LossRatioGap      *int `json:"lossRatioGap,omitempty"`
	RateVolatility    *int `json:"rateVolatility,omitempty"`
	RiskPoolStability *int `json:"riskPoolStability,omitempty"`
	FinancialBuffer   int  `json:"financialBuffer"`
	PricingAggression *int `json:"pricingAggression,omitempty"`
}

// Details carries human-readable diagnostics. None of it feeds the score.
type Details struct {
	RateHistoryYears int      `json:"rateHistoryYears"`
	Rating           string   `json:"rating"`
	AvgRateIncrease  *float64 `json:"avgRateIncrease,omitempty"`
	LossRatioPercent string   `json:"lossRatioPercent,omitempty"`
	IsTeaserRate     *bool    `json:"isTeaserRate,omitempty"`
	EWMAVolatility   *float64 `json:"ewmaVolatility,omitempty"`
}

// Result is the output of Score.
type Result struct {
	Score       int                `json:"score"`
	Model       Model              `json:"model"`
	Components  Components         `json:"components"`
	Details     Details            `json:"details"`
	WeightsUsed map[string]float64 `json:"weightsUsed"`
}

// IsEstablished reports whether a rate history of the given length is long
// enough for the established-carrier model.
func IsEstablished(historyLen int) bool {
	return historyLen >= MaturityThreshold
}

// Score computes the StableScore for a single quote.
func Score(in Input) Result {
	years := len(in.RateIncreases)
	if IsEstablished(years) {
		return scoreEstablished(in, years)
	}
	return scoreNewEntrant(in, years)
}

// weightedComponent is one entry in the established model's weighted fold.
// A nil score means the input was insufficient and the weight is dropped.
type weightedComponent struct {
	name   string
	weight float64
	score  *float64
}

// establishedComponents lists the established model in base-weight order.
func establishedComponents(in Input) []weightedComponent {
	return []weightedComponent{
		{name: ComponentLossRatioGap, weight: 0.40, score: lossRatioGapScore(in.Premiums, in.Claims)},
		{name: ComponentRateVolatility, weight: 0.25, score: rateVolatilityScore(in.RateIncreases)},
		// Risk-pool stability has no data source yet and is never available.
		{name: ComponentRiskPoolStability, weight: 0.20, score: nil},
		{name: ComponentFinancialBuffer, weight: 0.15, score: ptr(financialBufferScore(in.Rating))},
	}
}

// renormalize returns the weights of the available components scaled so
// they sum to 1.0.
func renormalize(components []weightedComponent) map[string]float64 {
	var total float64
	for _, c := range components {
		if c.score != nil {
			total += c.weight
		}
	}

	weights := make(map[string]float64, len(components))
	if total <= 0 {
		return weights
	}
	for _, c := range components {
		if c.score != nil {
			weights[c.name] = c.weight / total
		}
	}
	return weights
}

func scoreEstablished(in Input, years int) Result {
	components := establishedComponents(in)
	weights := renormalize(components)

	var sum float64
	for _, c := range components {
		if c.score != nil {
			sum += *c.score * weights[c.name]
		}
	}

	result := Result{
		Score: roundScore(sum),
		Model: ModelEstablished,
		Components: Components{
			LossRatioGap:    roundedPtr(components[0].score),
			RateVolatility:  roundedPtr(components[1].score),
			FinancialBuffer: roundScore(*components[3].score),
		},
		Details: Details{
			RateHistoryYears: years,
			Rating:           in.Rating,
			AvgRateIncrease:  averageIncreasePercent(in.RateIncreases),
			LossRatioPercent: lossRatioPercent(in.Premiums, in.Claims),
		},
		WeightsUsed: weights,
	}

	if ewma, ok := ewmaVolatility(in.RateIncreases); ok {
		pct := ewma * 100
		result.Details.EWMAVolatility = &pct
	}

	return result
}

func scoreNewEntrant(in Input, years int) Result {
	pricing := pricingAggressionScore(in.MonthlyPremium, in.PeerEstablishedPrices)
	financial := financialBufferScore(in.Rating)

	teaser := pricing < teaserThreshold

	return Result{
		Score: roundScore(pricing*newEntrantPricingWeight + financial*newEntrantFinancialWeight),
		Model: ModelNewEntrant,
		Components: Components{
			PricingAggression: ptr(roundScore(pricing)),
			FinancialBuffer:   roundScore(financial),
		},
		Details: Details{
			RateHistoryYears: years,
			Rating:           in.Rating,
			IsTeaserRate:     &teaser,
		},
		WeightsUsed: map[string]float64{
			ComponentPricingAggression: newEntrantPricingWeight,
			ComponentFinancialBuffer:   newEntrantFinancialWeight,
		},
	}
}

// roundScore rounds to the nearest integer and clamps into [0, 100].
// Non-finite values collapse to 0.
func roundScore(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(clamp(math.Round(v), 0, 100))
}

func roundedPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	return ptr(roundScore(*v))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr[T any](v T) *T {
	return &v
}
