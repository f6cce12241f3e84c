package service

import (
	"testing"

	"medsupp_backend/internal/csg"
)

func TestApplyHouseholdDiscounts(t *testing.T) {
	cases := []struct {
		name        string
		quote       csg.RawQuote
		sameCompany bool
		wantApplied bool
		wantCents   float64
		wantCat     string
	}{
		{
			name: "fractional percent",
			quote: csg.RawQuote{
				Rate:      csg.Rate{Month: 10000},
				Discounts: []csg.Discount{{Type: "percent", Value: 0.25, Category: "roommate"}},
			},
			wantApplied: true,
			wantCents:   7500,
			wantCat:     "roommate",
		},
		{
			name: "whole-number percent",
			quote: csg.RawQuote{
				Rate:      csg.Rate{Month: 10000},
				Discounts: []csg.Discount{{Type: "percent", Value: 50, Category: "Roommate"}},
			},
			wantApplied: true,
			wantCents:   5000,
			wantCat:     "Roommate",
		},
		{
			name: "dollar amount",
			quote: csg.RawQuote{
				Rate:             csg.Rate{Month: 10000},
				DiscountCategory: "household",
				Discounts:        []csg.Discount{{Type: "dollar", Value: 5}},
			},
			sameCompany: true,
			wantApplied: true,
			wantCents:   9500,
			wantCat:     "household",
		},
		{
			name: "household skipped without same company",
			quote: csg.RawQuote{
				Rate:      csg.Rate{Month: 10000},
				Discounts: []csg.Discount{{Type: "percent", Value: 0.1, Category: "Multi-Policy"}},
			},
			wantCents: 10000,
		},
		{
			name: "discounts sum against base rate",
			quote: csg.RawQuote{
				Rate: csg.Rate{Month: 10000},
				Discounts: []csg.Discount{
					{Type: "percent", Value: 0.5, Category: "roommate"},
					{Type: "fixed", Value: 10, Category: "roommate"},
				},
			},
			wantApplied: true,
			wantCents:   4000,
			wantCat:     "roommate",
		},
		{
			name: "floored at zero",
			quote: csg.RawQuote{
				Rate:      csg.Rate{Month: 1000},
				Discounts: []csg.Discount{{Type: "dollar", Value: 50, Category: "roommate"}},
			},
			wantApplied: true,
			wantCents:   0,
			wantCat:     "roommate",
		},
		{
			name:      "no discounts",
			quote:     csg.RawQuote{Rate: csg.Rate{Month: 10000}},
			wantCents: 10000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := applyHouseholdDiscounts(tc.quote, tc.sameCompany)
			if got.Applied != tc.wantApplied {
				t.Fatalf("expected applied=%v, got %v", tc.wantApplied, got.Applied)
			}
			if got.RateCents != tc.wantCents {
				t.Fatalf("expected %v cents, got %v", tc.wantCents, got.RateCents)
			}
			if got.OriginalCents != tc.quote.Rate.Month {
				t.Fatalf("expected original %v, got %v", tc.quote.Rate.Month, got.OriginalCents)
			}
			if got.Category != tc.wantCat {
				t.Fatalf("expected category %q, got %q", tc.wantCat, got.Category)
			}
		})
	}
}
