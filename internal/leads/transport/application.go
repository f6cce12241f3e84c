package transport

import "github.com/google/uuid"

// CreateApplicationRequest is the body of POST /api/v1/applications.
type CreateApplicationRequest struct {
	LeadID                string   `json:"leadId" validate:"required,uuid"`
	QuoteID               string   `json:"quoteId" validate:"omitempty,max=255"`
	SelectedCarrier       string   `json:"selectedCarrier" validate:"omitempty,max=200"`
	SelectedPlan          string   `json:"selectedPlan" validate:"omitempty,max=50"`
	MonthlyPremium        *float64 `json:"monthlyPremium" validate:"omitempty,gte=0"`
	QuoteKey              string   `json:"quoteKey" validate:"omitempty,max=255"`
	Phone                 string   `json:"phone" validate:"omitempty,max=32"`
	CopyFromApplicationID string   `json:"copyFromApplicationId" validate:"omitempty,uuid"`
}

// CreateApplicationResponse is returned after a draft application is created.
// ResumeToken is empty when no phone number is known for the lead.
type CreateApplicationResponse struct {
	Success       bool      `json:"success"`
	ApplicationID uuid.UUID `json:"applicationId"`
	ResumeToken   string    `json:"resumeToken,omitempty"`
	CopiedData    bool      `json:"copiedData"`
}

// EnrollmentData is the enrollment form state. HealthAnswers holds the
// underwriting questionnaire keyed by question.
type EnrollmentData struct {
	FirstName   string `json:"firstName" validate:"omitempty,max=100"`
	LastName    string `json:"lastName" validate:"omitempty,max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,isodate"`
	Gender      string `json:"gender" validate:"omitempty,max=20"`

	AddressLine1 string `json:"addressLine1" validate:"omitempty,max=255"`
	AddressLine2 string `json:"addressLine2" validate:"omitempty,max=255"`
	City         string `json:"city" validate:"omitempty,max=100"`
	State        string `json:"state" validate:"omitempty,len=2"`
	ZipCode      string `json:"zipCode" validate:"omitempty,zip5"`
	County       string `json:"county" validate:"omitempty,max=100"`

	MailingAddressDifferent string `json:"mailingAddressDifferent" validate:"omitempty,max=10"`
	MailingAddressLine1     string `json:"mailingAddressLine1" validate:"omitempty,max=255"`
	MailingAddressLine2     string `json:"mailingAddressLine2" validate:"omitempty,max=255"`
	MailingCity             string `json:"mailingCity" validate:"omitempty,max=100"`
	MailingState            string `json:"mailingState" validate:"omitempty,len=2"`
	MailingZipCode          string `json:"mailingZipCode" validate:"omitempty,zip5"`

	PartAEffectiveDate string `json:"partAEffectiveDate" validate:"omitempty,max=20"`
	PartBEffectiveDate string `json:"partBEffectiveDate" validate:"omitempty,max=20"`
	MedicareCardStatus string `json:"medicareCardStatus" validate:"omitempty,max=50"`

	PaymentMethod            string `json:"paymentMethod" validate:"omitempty,max=50"`
	AccountType              string `json:"accountType" validate:"omitempty,max=50"`
	FinancialInstitution     string `json:"financialInstitution" validate:"omitempty,max=200"`
	AccountHolderIsInsured   string `json:"accountHolderIsInsured" validate:"omitempty,max=10"`
	AcknowledgedPaymentTerms string `json:"acknowledgedPaymentTerms" validate:"omitempty,max=10"`

	HealthAnswers map[string]string `json:"healthAnswers" validate:"omitempty,max=100,dive,keys,max=100,endkeys,max=2000"`
}

// SaveApplicationRequest is the body of PUT /api/v1/applications/:id.
type SaveApplicationRequest struct {
	LeadID         string         `json:"leadId" validate:"required,uuid"`
	LastPage       string         `json:"lastPage" validate:"omitempty,max=100"`
	EnrollmentData EnrollmentData `json:"enrollmentData"`
}

// SaveApplicationResponse acknowledges saved progress.
type SaveApplicationResponse struct {
	Success       bool      `json:"success"`
	ApplicationID uuid.UUID `json:"applicationId"`
}

// ApplicationResponse is returned by GET /api/v1/applications/:id. Stored
// form values win over the lead's captured fields.
type ApplicationResponse struct {
	ApplicationID     uuid.UUID `json:"applicationId"`
	LeadID            uuid.UUID `json:"leadId"`
	Status            string    `json:"status"`
	SelectedCarrier   string    `json:"selectedCarrier"`
	SelectedPlan      string    `json:"selectedPlan"`
	MonthlyPremium    *float64  `json:"monthlyPremium"`
	QuoteKey          string    `json:"quoteKey"`
	QuoteID           string    `json:"quoteId"`
	LastPageCompleted string    `json:"lastPageCompleted"`
	EnrollmentData
}
