package transport

import (
	"encoding/json"

	"medsupp_backend/internal/csg"
	"medsupp_backend/internal/quotes/stablescore"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// QuoteRequest is the request body for POST /api/v1/quotes.
// Either Age or DateOfBirth must be given; DateOfBirth wins when both are set.
type QuoteRequest struct {
	ZipCode              string                   `json:"zipCode" validate:"required,zip5"`
	Age                  int                      `json:"age" validate:"required_without=DateOfBirth,omitempty,min=50,max=120"`
	DateOfBirth          string                   `json:"dateOfBirth" validate:"required_without=Age,isodate"`
	Gender               string                   `json:"gender" validate:"required,oneof=Male Female male female M F"`
	Tobacco              bool                     `json:"tobacco"`
	PlanType             string                   `json:"planType" validate:"omitempty,max=8"`
	UserPreferences      *stablescore.Preferences `json:"userPreferences"`
	HasHouseholdMember   string                   `json:"hasHouseholdMember" validate:"omitempty,oneof=yes no"`
	SameCompanyInsurance string                   `json:"sameCompanyInsurance" validate:"omitempty,oneof=yes no"`
	EffectiveDate        string                   `json:"effectiveDate" validate:"isodate"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// QuoteResponse is the body returned by POST /api/v1/quotes.
type QuoteResponse struct {
	Success    bool          `json:"success"`
	QuotingAge int           `json:"quotingAge"`
	State      string        `json:"state,omitempty"`
	LoggingKey string        `json:"loggingKey,omitempty"`
	SnapshotID string        `json:"snapshotId,omitempty"`
	Data       QuoteDataList `json:"data"`
}

// QuoteDataList wraps the ranked quotes.
type QuoteDataList struct {
	Quotes []Quote `json:"quotes"`
}

// Quote is one ranked, scored Medicare Supplement quote.
type Quote struct {
	CarrierName          string                 `json:"carrierName"`
	DisplayName          string                 `json:"displayName"`
	LogoURL              string                 `json:"logoUrl,omitempty"`
	PlanName             string                 `json:"planName"`
	MonthlyPremium       float64                `json:"monthlyPremium"`
	StableScore          int                    `json:"stableScore"`
	PersonalizationBoost int                    `json:"personalizationBoost"`
	FinalScore           int                    `json:"finalScore"`
	Model                stablescore.Model      `json:"model"`
	Components           stablescore.Components `json:"components"`
	Details              stablescore.Details    `json:"details"`
	AMBestRating         string                 `json:"amBestRating"`
	ApplicationFee       *float64               `json:"applicationFee,omitempty"`
	RateIncreases        []csg.RateIncrease     `json:"rateIncreases"`
	QuoteKey             string                 `json:"quoteKey,omitempty"`
	LoggingKey           string                 `json:"loggingKey,omitempty"`
	HasEApp              bool                   `json:"hasEapp"`
	CompanyNAIC          string                 `json:"companyNaic,omitempty"`
	Discount             DiscountInfo           `json:"discountInfo"`
	Market               MarketData             `json:"marketData"`
}

// DiscountInfo records what household discounts did to the premium.
type DiscountInfo struct {
	Discounts        []csg.Discount `json:"discounts"`
	DiscountCategory string         `json:"discountCategory,omitempty"`
	DiscountApplied  bool           `json:"discountApplied"`
	OriginalRate     *float64       `json:"originalRate,omitempty"`
}

// MarketData is the raw carrier market data kept for charts and audit.
type MarketData struct {
	National         *NationalMarketData  `json:"nationalMarketData,omitempty"`
	State            *csg.StateMarketData `json:"stateMarketData,omitempty"`
	AMBestRatingDate string               `json:"amBestRatingDate,omitempty"`
	EffectiveDate    string               `json:"effectiveDate,omitempty"`
	Fees             json.RawMessage      `json:"fees,omitempty"`
}

// NationalMarketData is the carrier's nationwide loss experience.
type NationalMarketData struct {
	Premiums  *float64 `json:"premiums,omitempty"`
	Claims    *float64 `json:"claims,omitempty"`
	LossRatio string   `json:"lossRatio,omitempty"`
	Year      int      `json:"year,omitempty"`
}

// StartDateResponse is the body returned by GET /api/v1/medigap/start-date.
type StartDateResponse struct {
	StartDate  string `json:"startDate"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	QuotingAge int    `json:"quotingAge"`
}

// TokenResponse is returned by the CSG token admin endpoints.
type TokenResponse struct {
	Status string `json:"status"`
}
