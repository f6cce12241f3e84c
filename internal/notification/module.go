// Package notification fans domain events out to sales: the call-request
// webhook and the sales inbox.
package notification

import (
	"context"
	"errors"

	"medsupp_backend/internal/email"
	"medsupp_backend/internal/events"
	"medsupp_backend/internal/scheduler"
	"medsupp_backend/platform/logger"
)

const (
	callRequestType   = "call_request"
	callRequestSource = "plan-switcher"
	isoMillis         = "2006-01-02T15:04:05.000Z"
)

// Module handles notification side effects of lead events.
type Module struct {
	sender     email.Sender
	salesEmail string
	webhook    scheduler.CallRequestDeliverer
	enqueuer   scheduler.CallRequestEnqueuer
	log        *logger.Logger
}

// New creates the module. An empty salesEmail disables the sales email.
func New(sender email.Sender, salesEmail string, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{sender: sender, salesEmail: salesEmail, log: log}
}

// SetWebhook enables call-request webhook delivery.
func (m *Module) SetWebhook(d scheduler.CallRequestDeliverer) { m.webhook = d }

// SetEnqueuer routes webhook delivery through the job queue instead of
// posting inline.
func (m *Module) SetEnqueuer(e scheduler.CallRequestEnqueuer) { m.enqueuer = e }

func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.LeadCaptured{}.EventName(), m)
	bus.Subscribe(events.CallRequested{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCaptured:
		return m.handleLeadCaptured(ctx, e)
	case events.CallRequested:
		return m.handleCallRequested(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleLeadCaptured(ctx context.Context, e events.LeadCaptured) error {
	m.log.WithContext(ctx).Info("lead captured",
		"leadId", e.LeadID,
		"zipCode", e.ZipCode,
		"existingLead", e.ExistingLead,
	)
	return nil
}

func (m *Module) handleCallRequested(ctx context.Context, e events.CallRequested) error {
	log := m.log.WithContext(ctx)
	var errs []error

	if m.webhook != nil {
		payload := callRequestPayload(e)
		if m.enqueuer != nil {
			if err := m.enqueuer.EnqueueCallRequestWebhook(ctx, e.RequestID.String(), payload); err != nil {
				log.Error("enqueue call request webhook failed", "requestId", e.RequestID, "error", err)
				errs = append(errs, err)
			}
		} else if err := m.webhook.DeliverCallRequest(ctx, payload); err != nil {
			log.Error("call request webhook failed", "requestId", e.RequestID, "error", err)
			errs = append(errs, err)
		}
	}

	if m.salesEmail != "" {
		if err := m.sender.SendCallRequestEmail(ctx, m.salesEmail, email.CallRequest{
			FirstName:       e.FirstName,
			LastName:        e.LastName,
			Email:           e.Email,
			Phone:           e.Phone,
			SelectedCarrier: e.SelectedCarrier,
			SelectedPlan:    e.SelectedPlan,
			SelectedPremium: e.SelectedPremium,
			CurrentPlan:     e.CurrentPlan,
			CurrentPremium:  e.CurrentPremium,
			ZipCode:         e.ZipCode,
			State:           e.State,
			RequestedAt:     e.RequestedAt,
		}); err != nil {
			log.Error("call request email failed", "requestId", e.RequestID, "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func callRequestPayload(e events.CallRequested) scheduler.CallRequestPayload {
	return scheduler.CallRequestPayload{
		Type:            callRequestType,
		Source:          callRequestSource,
		FirstName:       e.FirstName,
		LastName:        e.LastName,
		Email:           e.Email,
		Phone:           e.Phone,
		SelectedCarrier: e.SelectedCarrier,
		SelectedPlan:    e.SelectedPlan,
		SelectedPremium: e.SelectedPremium,
		CurrentPremium:  e.CurrentPremium,
		CurrentPlan:     e.CurrentPlan,
		ZipCode:         e.ZipCode,
		State:           e.State,
		RequestedAt:     e.RequestedAt.UTC().Format(isoMillis),
	}
}
