package stablescore

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestRateVolatilityNeverRisesWithEWMA(t *testing.T) {
	prev := math.Inf(1)
	prevEWMA := -1.0
	for i := 0; i <= 500; i++ {
		v := float64(i) / 1000
		history := increases(v, v, v, v, v)

		ewma, ok := ewmaVolatility(history)
		if !ok {
			t.Fatalf("increase %.3f: expected usable history", v)
		}
		if ewma < prevEWMA {
			t.Fatalf("increase %.3f: expected EWMA to grow, got %v after %v", v, ewma, prevEWMA)
		}
		prevEWMA = ewma

		score := rateVolatilityScore(history)
		if score == nil {
			t.Fatalf("increase %.3f: expected a score", v)
		}
		if *score > prev {
			t.Fatalf("EWMA %.3f: score rose from %v to %v", ewma, prev, *score)
		}
		prev = *score
	}
	if prev != 0 {
		t.Fatalf("expected 50%% volatility to score 0, got %v", prev)
	}
}

func TestPricingAggressionNeverRisesAsPriceDrops(t *testing.T) {
	peers := []float64{120, 130, 140}
	prev := math.Inf(1)
	for price := 200.0; price >= 0.5; price -= 0.5 {
		score := pricingAggressionScore(price, peers)
		if score > prev {
			t.Fatalf("price %.2f: score rose from %v to %v", price, prev, score)
		}
		if score < 0 || score > 100 {
			t.Fatalf("price %.2f: score %v out of range", price, score)
		}
		prev = score

		res := Score(Input{Rating: "A", MonthlyPremium: price, PeerEstablishedPrices: peers})
		if res.Components.PricingAggression == nil || float64(*res.Components.PricingAggression) != math.Round(score) {
			t.Fatalf("price %.2f: component %v does not match %v", price, res.Components.PricingAggression, score)
		}
	}
	if prev != 0 {
		t.Fatalf("expected deep discount to score 0, got %v", prev)
	}
}

func randomOptional(r *rand.Rand, max float64) *float64 {
	switch r.IntN(5) {
	case 0:
		return nil
	case 1:
		return floatPtr(0)
	case 2:
		return floatPtr(-r.Float64() * max)
	default:
		return floatPtr(r.Float64() * max)
	}
}

func randomInput(r *rand.Rand) Input {
	ratings := []string{"A++", "a+", "A-", "B++", "b+", "B", "C", "NR", "", "  a (excellent) "}
	history := make([]RateIncrease, r.IntN(9))
	for i := range history {
		switch r.IntN(10) {
		case 0:
			history[i].Increase = -r.Float64() * 0.2
		case 1:
			history[i].Increase = r.Float64() * 40
		default:
			history[i].Increase = r.Float64() * 0.3
		}
	}
	peers := make([]float64, r.IntN(6))
	for i := range peers {
		peers[i] = r.Float64()*400 - 20
	}
	return Input{
		RateIncreases:         history,
		Premiums:              randomOptional(r, 5e6),
		Claims:                randomOptional(r, 5e6),
		Rating:                ratings[r.IntN(len(ratings))],
		MonthlyPremium:        r.Float64()*400 - 20,
		PeerEstablishedPrices: peers,
	}
}

func inRange(v *int) bool {
	return v == nil || (*v >= 0 && *v <= 100)
}

func TestScoreRangesHoldForRandomInputs(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))
	for i := 0; i < 20000; i++ {
		in := randomInput(r)
		res := Score(in)

		if res.Score < 0 || res.Score > 100 {
			t.Fatalf("case %d: score %d out of range for %+v", i, res.Score, in)
		}
		c := res.Components
		if !inRange(c.LossRatioGap) || !inRange(c.RateVolatility) || !inRange(c.RiskPoolStability) ||
			!inRange(c.PricingAggression) || c.FinancialBuffer < 0 || c.FinancialBuffer > 100 {
			t.Fatalf("case %d: component out of range: %+v", i, c)
		}
		if IsEstablished(len(in.RateIncreases)) != (res.Model == ModelEstablished) {
			t.Fatalf("case %d: model %s for %d observations", i, res.Model, len(in.RateIncreases))
		}

		var sum float64
		for _, w := range res.WeightsUsed {
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("case %d: weights sum to %v", i, sum)
		}

		prefs := &Preferences{PlanPreference: "G", CompanyPreference: PreferPrice}
		boost := PersonalizationBoost(BoostQuote{CarrierName: "Aetna", PlanName: "Plan G", StableScore: res.Score, MonthlyPremium: in.MonthlyPremium}, prefs, in.PeerEstablishedPrices)
		if boost < 0 || boost > MaxBoost {
			t.Fatalf("case %d: boost %d out of range", i, boost)
		}
	}
}
