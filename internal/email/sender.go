package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medsupp_backend/platform/phone"
)

// CallRequest is the content of a sales call-request notification.
type CallRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	SelectedCarrier string
	SelectedPlan    string
	SelectedPremium *float64
	CurrentPlan     string
	CurrentPremium  *float64
	ZipCode         string
	State           string
	RequestedAt     time.Time
}

type Sender interface {
	SendCallRequestEmail(ctx context.Context, toEmail string, req CallRequest) error
}

type NoopSender struct{}

func (NoopSender) SendCallRequestEmail(ctx context.Context, toEmail string, req CallRequest) error {
	return nil
}

func renderCallRequest(req CallRequest) (subject, content string, err error) {
	name := strings.TrimSpace(req.FirstName + " " + req.LastName)
	display := phone.Display(req.Phone)

	selected := joinNonEmpty(" ", req.SelectedCarrier, planLabel(req.SelectedPlan), formatCurrencyUSD(req.SelectedPremium))
	if selected == "" {
		selected = "not specified"
	}

	content, err = renderEmailTemplate("call_request.html", callRequestEmailData{
		baseEmailData: baseEmailData{
			Title:      "New call request",
			Heading:    "New call request",
			Subheading: "A shopper asked to be called about switching plans.",
		},
		Name:        name,
		Phone:       display,
		PhoneDigits: req.Phone,
		Email:       req.Email,
		Location:    joinNonEmpty(" ", req.State, req.ZipCode),
		Selected:    selected,
		Current:     joinNonEmpty(" ", planLabel(req.CurrentPlan), formatCurrencyUSD(req.CurrentPremium)),
		RequestedAt: req.RequestedAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectCallRequestFmt, name, display), content, nil
}

func planLabel(plan string) string {
	plan = strings.TrimSpace(plan)
	if plan == "" || strings.HasPrefix(strings.ToLower(plan), "plan") {
		return plan
	}
	return "Plan " + plan
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
