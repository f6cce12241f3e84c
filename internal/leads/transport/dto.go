package transport

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// YesNo accepts a JSON boolean or the strings "Yes"/"No" sent by the
// guided quote form.
type YesNo bool

func (y *YesNo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = YesNo(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		*y = true
	default:
		*y = false
	}
	return nil
}

// Attribution carries marketing attribution captured by the frontend.
type Attribution struct {
	UTMSource          string `json:"utmSource" validate:"omitempty,max=255"`
	UTMMedium          string `json:"utmMedium" validate:"omitempty,max=255"`
	UTMCampaign        string `json:"utmCampaign" validate:"omitempty,max=255"`
	UTMContent         string `json:"utmContent" validate:"omitempty,max=255"`
	UTMTerm            string `json:"utmTerm" validate:"omitempty,max=255"`
	Referrer           string `json:"referrer" validate:"omitempty,max=2048"`
	FormPath           string `json:"formPath" validate:"omitempty,max=255"`
	AcquisitionChannel string `json:"acquisitionChannel" validate:"omitempty,max=100"`
	LandingPage        string `json:"landingPage" validate:"omitempty,max=2048"`
	DeviceType         string `json:"deviceType" validate:"omitempty,max=50"`
	ReferrerURL        string `json:"referrerUrl" validate:"omitempty,max=2048"`
	FBP                string `json:"fbp" validate:"omitempty,max=255"`
	FBC                string `json:"fbc" validate:"omitempty,max=255"`
	FBClickID          string `json:"fbClickId" validate:"omitempty,max=255"`
	GCLID              string `json:"gclid" validate:"omitempty,max=255"`
	UserAgent          string `json:"userAgent" validate:"omitempty,max=1024"`
	IPAddress          string `json:"ipAddress" validate:"omitempty,max=64"`
}

// CreateLeadRequest is the body of POST /api/v1/leads.
type CreateLeadRequest struct {
	FirstName             string `json:"firstName" validate:"required,max=100"`
	LastName              string `json:"lastName" validate:"omitempty,max=100"`
	Email                 string `json:"email" validate:"required,email,max=254"`
	Phone                 string `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth           string `json:"dateOfBirth" validate:"required,isodate"`
	Gender                string `json:"gender" validate:"required,oneof=Male Female male female M F"`
	ZipCode               string `json:"zipCode" validate:"required,zip5"`
	County                string `json:"county" validate:"omitempty,max=100"`
	State                 string `json:"state" validate:"omitempty,len=2"`
	TobaccoUser           YesNo  `json:"tobaccoUser"`
	MedicareEffectiveDate string `json:"medicareEffectiveDate" validate:"isodate"`
	PlanPreference        string `json:"planPreference" validate:"omitempty,max=50"`
	BudgetPreference      string `json:"budgetPreference" validate:"omitempty,max=50"`
	CompanyPreference     string `json:"companyPreference" validate:"omitempty,max=50"`
	SpecificCompany       string `json:"specificCompany" validate:"omitempty,max=200"`
	Attribution
}

// CreateLeadResponse is returned after a lead has been stored.
type CreateLeadResponse struct {
	Success      bool      `json:"success"`
	LeadID       uuid.UUID `json:"leadId"`
	ExistingLead bool      `json:"existingLead"`
}

// CallRequest is the body of POST /api/v1/call-requests.
type CallRequest struct {
	FirstName       string   `json:"firstName" validate:"required,max=100"`
	LastName        string   `json:"lastName" validate:"omitempty,max=100"`
	Email           string   `json:"email" validate:"omitempty,email,max=254"`
	Phone           string   `json:"phone" validate:"required,max=32"`
	SelectedCarrier string   `json:"selectedCarrier" validate:"omitempty,max=200"`
	SelectedPlan    string   `json:"selectedPlan" validate:"omitempty,max=50"`
	SelectedPremium *float64 `json:"selectedPremium" validate:"omitempty,gte=0"`
	CurrentPremium  *float64 `json:"currentPremium" validate:"omitempty,gte=0"`
	CurrentPlan     string   `json:"currentPlan" validate:"omitempty,max=100"`
	ZipCode         string   `json:"zipCode" validate:"omitempty,zip5"`
	State           string   `json:"state" validate:"omitempty,len=2"`
}

// CallRequestResponse acknowledges a call request.
type CallRequestResponse struct {
	Success   bool      `json:"success"`
	RequestID uuid.UUID `json:"requestId"`
}
