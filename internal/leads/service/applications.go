package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"medsupp_backend/internal/leads/repository"
	"medsupp_backend/internal/leads/transport"
	"medsupp_backend/platform/apperr"
	"medsupp_backend/platform/logger"
	"medsupp_backend/platform/phone"
	"medsupp_backend/platform/sanitize"

	"github.com/google/uuid"
)

const resumeTokenTTL = 30 * 24 * time.Hour

// planKeys are metadata keys that describe the selected quote. They are
// never copied from a superseded application.
var planKeys = []string{"selectedCarrier", "selectedPlan", "monthlyPremium", "quoteKey", "quoteId", "createdAt", "copiedFromApplicationId"}

// applicationMetadata is the JSON stored in applications.metadata.
type applicationMetadata struct {
	SelectedCarrier         string   `json:"selectedCarrier,omitempty"`
	SelectedPlan            string   `json:"selectedPlan,omitempty"`
	MonthlyPremium          *float64 `json:"monthlyPremium,omitempty"`
	QuoteKey                string   `json:"quoteKey,omitempty"`
	QuoteID                 string   `json:"quoteId,omitempty"`
	CreatedAt               string   `json:"createdAt,omitempty"`
	CopiedFromApplicationID string   `json:"copiedFromApplicationId,omitempty"`

	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`

	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
	County       string `json:"county,omitempty"`

	MailingAddressDifferent string `json:"mailingAddressDifferent,omitempty"`
	MailingAddressLine1     string `json:"mailingAddressLine1,omitempty"`
	MailingAddressLine2     string `json:"mailingAddressLine2,omitempty"`
	MailingCity             string `json:"mailingCity,omitempty"`
	MailingState            string `json:"mailingState,omitempty"`
	MailingZipCode          string `json:"mailingZipCode,omitempty"`

	PartAEffectiveDate string `json:"partAEffectiveDate,omitempty"`
	PartBEffectiveDate string `json:"partBEffectiveDate,omitempty"`
	MedicareCardStatus string `json:"medicareCardStatus,omitempty"`

	PaymentMethod            string `json:"paymentMethod,omitempty"`
	AccountType              string `json:"accountType,omitempty"`
	FinancialInstitution     string `json:"financialInstitution,omitempty"`
	AccountHolderIsInsured   string `json:"accountHolderIsInsured,omitempty"`
	AcknowledgedPaymentTerms string `json:"acknowledgedPaymentTerms,omitempty"`
}

// ApplicationService handles enrollment application drafts.
type ApplicationService struct {
	store    repository.ApplicationStore
	log      *logger.Logger
	now      func() time.Time
	newToken func() (string, error)
}

// NewApplicationService creates a new application service.
func NewApplicationService(store repository.ApplicationStore, log *logger.Logger) *ApplicationService {
	return &ApplicationService{store: store, log: log, now: time.Now, newToken: randomToken}
}

// Create starts a draft application for the lead, optionally seeded from an
// earlier application of the same lead. A resume token is issued when a
// phone number is known.
func (s *ApplicationService) Create(ctx context.Context, req transport.CreateApplicationRequest) (transport.CreateApplicationResponse, error) {
	log := s.log.WithContext(ctx)

	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		return transport.CreateApplicationResponse{}, apperr.Validation("leadId must be a UUID")
	}
	var copyFrom *uuid.UUID
	if req.CopyFromApplicationID != "" {
		id, err := uuid.Parse(req.CopyFromApplicationID)
		if err != nil {
			return transport.CreateApplicationResponse{}, apperr.Validation("copyFromApplicationId must be a UUID")
		}
		copyFrom = &id
	}

	meta := applicationMetadata{
		SelectedCarrier: sanitize.Text(req.SelectedCarrier),
		SelectedPlan:    sanitize.Text(req.SelectedPlan),
		MonthlyPremium:  req.MonthlyPremium,
		QuoteKey:        strings.TrimSpace(req.QuoteKey),
		QuoteID:         strings.TrimSpace(req.QuoteID),
		CreatedAt:       s.now().UTC().Format(time.RFC3339),
	}
	if copyFrom != nil {
		meta.CopiedFromApplicationID = copyFrom.String()
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return transport.CreateApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create application", err)
	}

	token, err := s.newToken()
	if err != nil {
		return transport.CreateApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create application", err)
	}

	params := repository.CreateApplicationParams{
		ID:              uuid.New(),
		LeadID:          leadID,
		QuoteID:         optional(meta.QuoteID),
		CarrierName:     optional(meta.SelectedCarrier),
		PlanSelection:   optional(meta.SelectedPlan),
		Metadata:        metadata,
		HealthAnswers:   []byte(`{}`),
		CopyFrom:        copyFrom,
		CopyDropKeys:    planKeys,
		Phone:           normalizePhone(req.Phone),
		ResumeTokenHash: hashToken(token),
		ResumeExpiresAt: s.now().Add(resumeTokenTTL).UTC(),
	}

	result, err := s.store.CreateApplication(ctx, params)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.CreateApplicationResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		log.DatabaseError("create application", err)
		return transport.CreateApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create application", err).WithOp("leads.CreateApplication")
	}
	if copyFrom != nil && !result.Copied {
		log.Warn("copy source application not found for lead", "leadId", leadID, "copyFrom", *copyFrom)
	}

	log.Info("application created", "applicationId", params.ID, "leadId", leadID, "copied", result.Copied)

	resp := transport.CreateApplicationResponse{
		Success:       true,
		ApplicationID: params.ID,
		CopiedData:    result.Copied,
	}
	if result.ResumeIssued {
		resp.ResumeToken = token
	}
	return resp, nil
}

// Load returns the application's form state scoped to the owning lead.
func (s *ApplicationService) Load(ctx context.Context, id, leadID uuid.UUID) (transport.ApplicationResponse, error) {
	rec, err := s.store.LoadApplication(ctx, id, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ApplicationResponse{}, apperr.NotFound("application not found")
	}
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("load application", err)
		return transport.ApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load application", err).WithOp("leads.LoadApplication")
	}

	var meta applicationMetadata
	if len(rec.Metadata) > 0 {
		if err := json.Unmarshal(rec.Metadata, &meta); err != nil {
			return transport.ApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load application", err)
		}
	}
	health := map[string]string{}
	if len(rec.HealthAnswers) > 0 {
		if err := json.Unmarshal(rec.HealthAnswers, &health); err != nil {
			return transport.ApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load application", err)
		}
	}

	dob := ""
	if !rec.LeadDateOfBirth.IsZero() {
		dob = rec.LeadDateOfBirth.Format(time.DateOnly)
	}

	return transport.ApplicationResponse{
		ApplicationID:     rec.ID,
		LeadID:            rec.LeadID,
		Status:            rec.Status,
		SelectedCarrier:   firstNonEmpty(deref(rec.CarrierName), meta.SelectedCarrier),
		SelectedPlan:      firstNonEmpty(deref(rec.PlanSelection), meta.SelectedPlan),
		MonthlyPremium:    meta.MonthlyPremium,
		QuoteKey:          meta.QuoteKey,
		QuoteID:           firstNonEmpty(meta.QuoteID, deref(rec.QuoteID)),
		LastPageCompleted: deref(rec.LastPageCompleted),
		EnrollmentData: transport.EnrollmentData{
			FirstName:   firstNonEmpty(meta.FirstName, rec.LeadFirstName),
			LastName:    firstNonEmpty(meta.LastName, deref(rec.LeadLastName)),
			Email:       firstNonEmpty(meta.Email, rec.LeadEmail),
			Phone:       firstNonEmpty(meta.Phone, deref(rec.LeadPhone)),
			DateOfBirth: firstNonEmpty(meta.DateOfBirth, dob),
			Gender:      firstNonEmpty(meta.Gender, rec.LeadGender),

			AddressLine1: meta.AddressLine1,
			AddressLine2: meta.AddressLine2,
			City:         firstNonEmpty(meta.City, deref(rec.LeadCity)),
			State:        firstNonEmpty(meta.State, deref(rec.LeadState)),
			ZipCode:      firstNonEmpty(meta.ZipCode, rec.LeadZipCode),
			County:       firstNonEmpty(meta.County, deref(rec.LeadCounty)),

			MailingAddressDifferent: meta.MailingAddressDifferent,
			MailingAddressLine1:     meta.MailingAddressLine1,
			MailingAddressLine2:     meta.MailingAddressLine2,
			MailingCity:             meta.MailingCity,
			MailingState:            meta.MailingState,
			MailingZipCode:          meta.MailingZipCode,

			PartAEffectiveDate: meta.PartAEffectiveDate,
			PartBEffectiveDate: meta.PartBEffectiveDate,
			MedicareCardStatus: meta.MedicareCardStatus,

			PaymentMethod:            meta.PaymentMethod,
			AccountType:              meta.AccountType,
			FinancialInstitution:     meta.FinancialInstitution,
			AccountHolderIsInsured:   meta.AccountHolderIsInsured,
			AcknowledgedPaymentTerms: meta.AcknowledgedPaymentTerms,

			HealthAnswers: health,
		},
	}, nil
}

// Save merges enrollment progress into the application. Saving a superseded
// application is a conflict.
func (s *ApplicationService) Save(ctx context.Context, id uuid.UUID, req transport.SaveApplicationRequest) (transport.SaveApplicationResponse, error) {
	log := s.log.WithContext(ctx)

	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		return transport.SaveApplicationResponse{}, apperr.Validation("leadId must be a UUID")
	}

	data := req.EnrollmentData
	normalizedPhone := normalizePhone(data.Phone)
	meta := applicationMetadata{
		FirstName:   sanitize.Text(data.FirstName),
		LastName:    sanitize.Text(data.LastName),
		Email:       normalizeEmail(data.Email),
		Phone:       deref(normalizedPhone),
		DateOfBirth: data.DateOfBirth,
		Gender:      data.Gender,

		AddressLine1: sanitize.Text(data.AddressLine1),
		AddressLine2: sanitize.Text(data.AddressLine2),
		City:         sanitize.Text(data.City),
		State:        strings.ToUpper(data.State),
		ZipCode:      data.ZipCode,
		County:       sanitize.Text(data.County),

		MailingAddressDifferent: data.MailingAddressDifferent,
		MailingAddressLine1:     sanitize.Text(data.MailingAddressLine1),
		MailingAddressLine2:     sanitize.Text(data.MailingAddressLine2),
		MailingCity:             sanitize.Text(data.MailingCity),
		MailingState:            strings.ToUpper(data.MailingState),
		MailingZipCode:          data.MailingZipCode,

		PartAEffectiveDate: data.PartAEffectiveDate,
		PartBEffectiveDate: data.PartBEffectiveDate,
		MedicareCardStatus: data.MedicareCardStatus,

		PaymentMethod:            data.PaymentMethod,
		AccountType:              data.AccountType,
		FinancialInstitution:     sanitize.Text(data.FinancialInstitution),
		AccountHolderIsInsured:   data.AccountHolderIsInsured,
		AcknowledgedPaymentTerms: data.AcknowledgedPaymentTerms,
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return transport.SaveApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to save application", err)
	}

	health := make(map[string]string, len(data.HealthAnswers))
	for k, v := range data.HealthAnswers {
		health[k] = sanitize.Text(v)
	}
	healthJSON, err := json.Marshal(health)
	if err != nil {
		return transport.SaveApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to save application", err)
	}

	err = s.store.SaveApplication(ctx, repository.SaveApplicationParams{
		ID:            id,
		LeadID:        leadID,
		Metadata:      metadata,
		HealthAnswers: healthJSON,
		LastPage:      optional(req.LastPage),
		Phone:         normalizedPhone,
		City:          optional(meta.City),
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return transport.SaveApplicationResponse{}, apperr.NotFound("application not found")
	case errors.Is(err, repository.ErrSuperseded):
		return transport.SaveApplicationResponse{}, apperr.Conflict("application was replaced by a newer one")
	case err != nil:
		log.DatabaseError("save application", err)
		return transport.SaveApplicationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to save application", err).WithOp("leads.SaveApplication")
	}

	log.Info("application saved", "applicationId", id, "lastPage", req.LastPage)
	return transport.SaveApplicationResponse{Success: true, ApplicationID: id}, nil
}

// normalizePhone returns national digits, or nil for a blank or unusable number.
func normalizePhone(input string) *string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	digits, err := phone.NationalDigits(input)
	if err != nil {
		return nil
	}
	return &digits
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
