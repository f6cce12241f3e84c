package stablescore

import "strings"

// CompanyPreference is the qualitative carrier preference a shopper can state.
type CompanyPreference string

const (
	PreferStability CompanyPreference = "stability"
	PreferBrand     CompanyPreference = "brand"
	PreferPrice     CompanyPreference = "price"
)

const (
	// MaxBoost caps the personalization boost.
	MaxBoost = 10

	planMatchBoost      = 5
	companyMatchBoost   = 5
	stabilityBoost      = 5
	brandBoost          = 5
	priceBoost          = 3
	stabilityBoostFloor = 85
	priceBoostRatio     = 0.9
)

// nationalBrands are matched as lowercase substrings of the carrier name.
var nationalBrands = []string{
	"aarp",
	"united healthcare",
	"aetna",
	"mutual of omaha",
	"humana",
	"cigna",
	"anthem",
	"blue cross",
}

// Preferences are what the shopper told us. Empty fields are ignored.
type Preferences struct {
	PlanPreference    string            `json:"planPreference,omitempty"`
	SpecificCompany   string            `json:"specificCompany,omitempty"`
	CompanyPreference CompanyPreference `json:"companyPreference,omitempty"`
}

// BoostQuote is the slice of a scored quote the booster looks at.
type BoostQuote struct {
	CarrierName    string
	PlanName       string
	StableScore    int
	MonthlyPremium float64
}

// PersonalizationBoost returns the 0-10 ranking boost for q given the
// shopper's preferences and the monthly premiums of every quote in the set.
// A nil prefs yields 0.
func PersonalizationBoost(q BoostQuote, prefs *Preferences, peerPremiums []float64) int {
	if prefs == nil {
		return 0
	}

	boost := 0
	carrier := strings.ToLower(q.CarrierName)

	if plan := planLetter(prefs.PlanPreference); plan != "" {
		if strings.Contains(planLetter(q.PlanName), plan) {
			boost += planMatchBoost
		}
	}

	if company := strings.ToLower(strings.TrimSpace(prefs.SpecificCompany)); company != "" {
		if carrier != "" && (strings.Contains(carrier, company) || strings.Contains(company, carrier)) {
			boost += companyMatchBoost
		}
	} else {
		switch prefs.CompanyPreference {
		case PreferStability:
			if q.StableScore >= stabilityBoostFloor {
				boost += stabilityBoost
			}
		case PreferBrand:
			if isNationalBrand(carrier) {
				boost += brandBoost
			}
		case PreferPrice:
			if avg, ok := mean(peerPremiums); ok && q.MonthlyPremium < avg*priceBoostRatio {
				boost += priceBoost
			}
		}
	}

	if boost > MaxBoost {
		return MaxBoost
	}
	return boost
}

// planLetter lowercases a plan name and drops a leading "plan" word, so
// "Plan G" and "G" compare equal and "N" does not match the "n" in "plan".
func planLetter(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if rest, ok := strings.CutPrefix(s, "plan"); ok && (rest == "" || rest[0] == ' ' || rest[0] == '-') {
		s = strings.TrimLeft(rest, " -")
	}
	return s
}

func isNationalBrand(carrier string) bool {
	for _, brand := range nationalBrands {
		if strings.Contains(carrier, brand) {
			return true
		}
	}
	return false
}

func mean(values []float64) (float64, bool) {
	var sum float64
	n := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
