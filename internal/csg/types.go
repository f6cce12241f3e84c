package csg

import (
	"encoding/json"
	"strings"
)

// RawQuote is one Medicare Supplement quote as returned by quotes.json.
// Rate.Month is in cents.
type RawQuote struct {
	Key              string          `json:"key"`
	Plan             string          `json:"plan"`
	State            string          `json:"state"`
	Rate             Rate            `json:"rate"`
	RateIncreases    []RateIncrease  `json:"rate_increases"`
	CompanyBase      CompanyBase     `json:"company_base"`
	Discounts        []Discount      `json:"discounts"`
	DiscountCategory string          `json:"discount_category"`
	Fees             json.RawMessage `json:"fees,omitempty"`
	ViewType         []string        `json:"view_type"`
	ContextualData   ContextualData  `json:"contextual_data"`
}

// HasViewType reports whether the quote is tagged with the given view type.
func (q RawQuote) HasViewType(viewType string) bool {
	for _, v := range q.ViewType {
		if strings.EqualFold(v, viewType) {
			return true
		}
	}
	return false
}

// Rate holds the monthly premium in cents.
type Rate struct {
	Month float64 `json:"month"`
}

// ContextualData carries enrollment metadata.
type ContextualData struct {
	HasEApp bool `json:"has_eapp"`
}

// RateIncrease is one historical rate change. CSG has used both
// "rate_increase" and "increase" for the value.
type RateIncrease struct {
	Increase float64 `json:"rate_increase"`
	Date     string  `json:"date,omitempty"`
}

// UnmarshalJSON accepts either field name for the increase value.
func (r *RateIncrease) UnmarshalJSON(data []byte) error {
	var raw struct {
		RateIncrease *float64 `json:"rate_increase"`
		Increase     *float64 `json:"increase"`
		Date         string   `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Date = raw.Date
	switch {
	case raw.Increase != nil && *raw.Increase != 0:
		r.Increase = *raw.Increase
	case raw.RateIncrease != nil:
		r.Increase = *raw.RateIncrease
	default:
		r.Increase = 0
	}
	return nil
}

// CompanyBase describes the carrier behind a quote.
type CompanyBase struct {
	Name             string              `json:"name"`
	NAIC             string              `json:"naic"`
	AMBestRating     string              `json:"ambest_rating"`
	AMBestRatingDate string              `json:"ambest_rating_date,omitempty"`
	StateMarketData  []StateMarketData   `json:"med_supp_state_market_data"`
	MarketData       []MarketDataSummary `json:"med_supp_market_data"`
}

// LatestStateMarketData returns the most recent state market figures.
func (c CompanyBase) LatestStateMarketData() *StateMarketData {
	if len(c.StateMarketData) == 0 {
		return nil
	}
	return &c.StateMarketData[0]
}

// LatestNationalMarketData returns the most recent national market figures
// and the year they apply to.
func (c CompanyBase) LatestNationalMarketData() (*NationalMarketData, int) {
	if len(c.MarketData) == 0 || c.MarketData[0].National == nil {
		return nil, 0
	}
	return c.MarketData[0].National, c.MarketData[0].Year
}

// StateMarketData is a carrier's Medigap premiums and claims in one state.
type StateMarketData struct {
	State    string   `json:"state,omitempty"`
	Year     int      `json:"year,omitempty"`
	Premiums *float64 `json:"premiums"`
	Claims   *float64 `json:"claims"`
	Lives    *float64 `json:"lives,omitempty"`
}

// MarketDataSummary wraps the national figures for one year.
type MarketDataSummary struct {
	Year     int                 `json:"year"`
	National *NationalMarketData `json:"med_supp_national_market_data"`
}

// NationalMarketData is a carrier's nationwide Medigap premiums and claims.
type NationalMarketData struct {
	Premiums *float64 `json:"premiums"`
	Claims   *float64 `json:"claims"`
}

// Discount is a discount offered on a quote. Value is a fraction or percent
// for type "percent", and dollars for "dollar" or "fixed".
type Discount struct {
	Name     string  `json:"name,omitempty"`
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Category string  `json:"category,omitempty"`
}

// QuoteParams are the inputs to a quotes.json request.
type QuoteParams struct {
	Zip5          string
	Age           int
	Gender        string // "M" or "F"
	Tobacco       bool
	Plan          string
	EffectiveDate string // YYYY-MM-DD
}

// QuoteResult is the decoded quotes.json response.
type QuoteResult struct {
	Quotes     []RawQuote
	LoggingKey string
	State      string
}
