// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"medsupp_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCaptured is published after a lead has been stored.
type LeadCaptured struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName,omitempty"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	ZipCode        string    `json:"zipCode"`
	State          string    `json:"state,omitempty"`
	PlanPreference string    `json:"planPreference,omitempty"`
	// ExistingLead is true when the email already had an application and
	// only contact details were refreshed.
	ExistingLead bool `json:"existingLead"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// CallRequested is published when a shopper asks an agent to call them
// about switching plans.
type CallRequested struct {
	BaseEvent
	RequestID       uuid.UUID `json:"requestId"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	SelectedCarrier string    `json:"selectedCarrier"`
	SelectedPlan    string    `json:"selectedPlan"`
	SelectedPremium *float64  `json:"selectedPremium,omitempty"`
	CurrentPremium  *float64  `json:"currentPremium,omitempty"`
	CurrentPlan     string    `json:"currentPlan,omitempty"`
	ZipCode         string    `json:"zipCode,omitempty"`
	State           string    `json:"state,omitempty"`
	RequestedAt     time.Time `json:"requestedAt"`
}

func (e CallRequested) EventName() string { return "leads.call.requested" }
