// Package service implements lead capture and call-request intake.
package service

import (
	"context"
	"strings"
	"time"

	"medsupp_backend/internal/events"
	"medsupp_backend/internal/leads/repository"
	"medsupp_backend/internal/leads/transport"
	"medsupp_backend/platform/apperr"
	"medsupp_backend/platform/logger"
	"medsupp_backend/platform/phone"
	"medsupp_backend/platform/sanitize"

	"github.com/google/uuid"
)

const defaultFormPath = "/q/guided"

// Client identifies the caller when the body omits it.
type Client struct {
	IP        string
	UserAgent string
}

// Service handles lead business logic.
type Service struct {
	repo     repository.LeadWriter
	eventBus events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new leads service.
func New(repo repository.LeadWriter, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, eventBus: eventBus, log: log, now: time.Now}
}

// CreateLead stores the lead and publishes LeadCaptured. An unusable phone
// number is stored as NULL rather than rejecting the lead.
func (s *Service) CreateLead(ctx context.Context, req transport.CreateLeadRequest, client Client) (transport.CreateLeadResponse, error) {
	log := s.log.WithContext(ctx)

	dob, err := time.Parse(time.DateOnly, req.DateOfBirth)
	if err != nil {
		return transport.CreateLeadResponse{}, apperr.Validation("dateOfBirth must be YYYY-MM-DD")
	}
	effective := dob
	if req.MedicareEffectiveDate != "" {
		if effective, err = time.Parse(time.DateOnly, req.MedicareEffectiveDate); err != nil {
			return transport.CreateLeadResponse{}, apperr.Validation("medicareEffectiveDate must be YYYY-MM-DD")
		}
	}

	var normalizedPhone *string
	if strings.TrimSpace(req.Phone) != "" {
		if digits, err := phone.NationalDigits(req.Phone); err == nil {
			normalizedPhone = &digits
		} else {
			log.Warn("discarding unparseable lead phone")
		}
	}

	formPath := strings.TrimSpace(req.FormPath)
	if formPath == "" {
		formPath = defaultFormPath
	}

	params := repository.UpsertLeadParams{
		FirstName:             sanitize.Text(req.FirstName),
		LastName:              optional(sanitize.Text(req.LastName)),
		Email:                 normalizeEmail(req.Email),
		Phone:                 normalizedPhone,
		DateOfBirth:           dob,
		Gender:                req.Gender,
		ZipCode:               req.ZipCode,
		County:                optional(sanitize.Text(req.County)),
		State:                 optional(strings.ToUpper(req.State)),
		TobaccoUser:           bool(req.TobaccoUser),
		MedicareEffectiveDate: effective,
		PlanPreference:        optional(req.PlanPreference),
		BudgetPreference:      optional(req.BudgetPreference),
		CompanyPreference:     optional(req.CompanyPreference),
		SpecificCompany:       optional(sanitize.Text(req.SpecificCompany)),
		UTMSource:             optional(req.UTMSource),
		UTMMedium:             optional(req.UTMMedium),
		UTMCampaign:           optional(req.UTMCampaign),
		UTMContent:            optional(req.UTMContent),
		UTMTerm:               optional(req.UTMTerm),
		Referrer:              optional(req.Referrer),
		FormPath:              formPath,
		AcquisitionChannel:    optional(req.AcquisitionChannel),
		LandingPage:           optional(req.LandingPage),
		DeviceType:            optional(req.DeviceType),
		ReferrerURL:           optional(req.ReferrerURL),
		FBP:                   optional(req.FBP),
		FBC:                   optional(req.FBC),
		FBClickID:             optional(req.FBClickID),
		GCLID:                 optional(req.GCLID),
		IPAddress:             optional(firstNonEmpty(req.IPAddress, client.IP)),
		UserAgent:             optional(firstNonEmpty(req.UserAgent, client.UserAgent)),
	}

	if params.FirstName == "" {
		return transport.CreateLeadResponse{}, apperr.Validation("firstName is required").
			WithDetails(map[string]string{"firstName": "required"})
	}

	result, err := s.repo.Upsert(ctx, params)
	if err != nil {
		log.DatabaseError("upsert lead", err)
		return transport.CreateLeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create/update lead", err).WithOp("leads.CreateLead")
	}
	if result.ID == uuid.Nil {
		return transport.CreateLeadResponse{}, apperr.Internal("failed to create/update lead").WithOp("leads.CreateLead")
	}

	log.Info("lead saved", "leadId", result.ID, "existingLead", result.HasApplication)

	s.eventBus.Publish(ctx, events.LeadCaptured{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         result.ID,
		FirstName:      params.FirstName,
		LastName:       deref(params.LastName),
		Email:          params.Email,
		Phone:          deref(normalizedPhone),
		ZipCode:        req.ZipCode,
		State:          deref(params.State),
		PlanPreference: req.PlanPreference,
		ExistingLead:   result.HasApplication,
	})

	return transport.CreateLeadResponse{
		Success:      true,
		LeadID:       result.ID,
		ExistingLead: result.HasApplication,
	}, nil
}

// RequestCall publishes CallRequested for the notification subscribers.
func (s *Service) RequestCall(ctx context.Context, req transport.CallRequest) (transport.CallRequestResponse, error) {
	digits, err := phone.NationalDigits(req.Phone)
	if err != nil {
		return transport.CallRequestResponse{}, apperr.Validation("phone must be a valid US number").
			WithDetails(map[string]string{"phone": "phone"})
	}

	id := uuid.New()
	s.eventBus.Publish(ctx, events.CallRequested{
		BaseEvent:       events.NewBaseEvent(),
		RequestID:       id,
		FirstName:       sanitize.Text(req.FirstName),
		LastName:        sanitize.Text(req.LastName),
		Email:           normalizeEmail(req.Email),
		Phone:           digits,
		SelectedCarrier: sanitize.Text(req.SelectedCarrier),
		SelectedPlan:    sanitize.Text(req.SelectedPlan),
		SelectedPremium: req.SelectedPremium,
		CurrentPremium:  req.CurrentPremium,
		CurrentPlan:     sanitize.Text(req.CurrentPlan),
		ZipCode:         req.ZipCode,
		State:           strings.ToUpper(req.State),
		RequestedAt:     s.now().UTC(),
	})

	s.log.WithContext(ctx).Info("call requested",
		"requestId", id,
		"selectedCarrier", req.SelectedCarrier,
		"selectedPlan", req.SelectedPlan,
	)

	return transport.CallRequestResponse{Success: true, RequestID: id}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
