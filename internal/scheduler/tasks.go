package scheduler

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const TaskCallRequestWebhook = "leads.call_request.webhook"

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// CallRequestPayload is both the task payload and the webhook body.
type CallRequestPayload struct {
	Type            string   `json:"type"`
	Source          string   `json:"source"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName,omitempty"`
	Email           string   `json:"email,omitempty"`
	Phone           string   `json:"phone"`
	SelectedCarrier string   `json:"selectedCarrier,omitempty"`
	SelectedPlan    string   `json:"selectedPlan,omitempty"`
	SelectedPremium *float64 `json:"selectedPremium,omitempty"`
	CurrentPremium  *float64 `json:"currentPremium,omitempty"`
	CurrentPlan     string   `json:"currentPlan,omitempty"`
	ZipCode         string   `json:"zipCode,omitempty"`
	State           string   `json:"state,omitempty"`
	RequestedAt     string   `json:"requestedAt"`
}

func NewCallRequestWebhookTask(payload CallRequestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallRequestWebhook, data), nil
}

func ParseCallRequestPayload(task *asynq.Task) (CallRequestPayload, error) {
	var payload CallRequestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallRequestPayload{}, err
	}
	return payload, nil
}
