package service

import (
	"math"
	"strings"

	"medsupp_backend/internal/csg"
)

// householdDiscount is the outcome of applying household discounts to one quote.
type householdDiscount struct {
	Applied       bool
	RateCents     float64
	OriginalCents float64
	Category      string
}

// applyHouseholdDiscounts sums every eligible discount against the base rate.
// Multi-policy and household discounts need the household member to be
// insured with the same company; roommate discounts do not. The discounted
// rate never drops below zero.
func applyHouseholdDiscounts(q csg.RawQuote, sameCompany bool) householdDiscount {
	base := q.Rate.Month
	out := householdDiscount{RateCents: base, OriginalCents: base}
	if len(q.Discounts) == 0 || !isFinite(base) {
		return out
	}

	var total float64
	for _, d := range q.Discounts {
		category := d.Category
		if category == "" {
			category = q.DiscountCategory
		}
		lower := strings.ToLower(category)

		roommate := strings.Contains(lower, "roommate")
		multi := strings.Contains(lower, "multi") || strings.Contains(lower, "household")
		if multi && !roommate && !sameCompany {
			continue
		}

		var amount float64
		switch strings.ToLower(d.Type) {
		case "percent":
			rate := d.Value
			if rate > 1 {
				rate /= 100
			}
			amount = base * rate
		case "dollar", "fixed":
			amount = d.Value * 100
		default:
			continue
		}
		if !isFinite(amount) {
			continue
		}

		total += amount
		if out.Category == "" {
			out.Category = category
		}
	}

	if total <= 0 {
		return householdDiscount{RateCents: base, OriginalCents: base}
	}

	out.Applied = true
	out.RateCents = math.Max(0, base-total)
	if out.Category == "" {
		out.Category = q.DiscountCategory
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
