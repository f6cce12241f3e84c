package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medsupp_backend/internal/events"
	"medsupp_backend/internal/leads/repository"
	"medsupp_backend/internal/leads/transport"
	"medsupp_backend/platform/apperr"
	"medsupp_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	params  []repository.UpsertLeadParams
	result  repository.UpsertResult
	err     error
	hasApps map[string]bool
}

func (f *fakeRepo) Upsert(_ context.Context, params repository.UpsertLeadParams) (repository.UpsertResult, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return repository.UpsertResult{}, f.err
	}
	res := f.result
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.HasApplication = f.hasApps[params.Email]
	return res, nil
}

type recordingBus struct {
	*events.InMemoryBus
	mu       sync.Mutex
	captured []events.LeadCaptured
	calls    []events.CallRequested
}

func newRecordingBus() *recordingBus {
	b := &recordingBus{InMemoryBus: events.NewInMemoryBus(logger.New("test"))}
	b.Subscribe(events.LeadCaptured{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.captured = append(b.captured, e.(events.LeadCaptured))
		return nil
	}))
	b.Subscribe(events.CallRequested{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls = append(b.calls, e.(events.CallRequested))
		return nil
	}))
	return b
}

func newTestService(repo *fakeRepo) (*Service, *recordingBus) {
	bus := newRecordingBus()
	svc := New(repo, bus, logger.New("test"))
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC) }
	return svc, bus
}

func validLead() transport.CreateLeadRequest {
	return transport.CreateLeadRequest{
		FirstName:   " Mary ",
		LastName:    "Jones",
		Email:       "Mary.Jones@Example.com ",
		Phone:       "+1 (415) 555-2671",
		DateOfBirth: "1960-04-12",
		Gender:      "Female",
		ZipCode:     "75001",
		State:       "tx",
		TobaccoUser: true,
	}
}

func TestCreateLeadNormalizesInput(t *testing.T) {
	repo := &fakeRepo{}
	svc, bus := newTestService(repo)

	res, err := svc.CreateLead(context.Background(), validLead(), Client{IP: "203.0.113.9", UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.ExistingLead || res.LeadID == uuid.Nil {
		t.Fatalf("unexpected response: %+v", res)
	}

	p := repo.params[0]
	if p.Email != "mary.jones@example.com" {
		t.Fatalf("expected normalized email, got %q", p.Email)
	}
	if p.FirstName != "Mary" {
		t.Fatalf("expected trimmed first name, got %q", p.FirstName)
	}
	if p.Phone == nil || *p.Phone != "4155552671" {
		t.Fatalf("expected 10-digit phone, got %v", p.Phone)
	}
	if p.FormPath != defaultFormPath {
		t.Fatalf("expected default form path, got %q", p.FormPath)
	}
	if !p.MedicareEffectiveDate.Equal(p.DateOfBirth) {
		t.Fatalf("expected effective date to default to DOB, got %v", p.MedicareEffectiveDate)
	}
	if p.State == nil || *p.State != "TX" {
		t.Fatalf("expected upper-cased state, got %v", p.State)
	}
	if p.IPAddress == nil || *p.IPAddress != "203.0.113.9" || p.UserAgent == nil || *p.UserAgent != "test-agent" {
		t.Fatal("expected client IP and user agent fallbacks")
	}
	if p.UTMSource != nil || p.County != nil {
		t.Fatal("expected blank optional fields to be NULL")
	}
	if !p.TobaccoUser {
		t.Fatal("expected tobacco flag to carry through")
	}

	bus.Wait()
	if len(bus.captured) != 1 || bus.captured[0].LeadID != res.LeadID || bus.captured[0].Phone != "4155552671" {
		t.Fatalf("expected LeadCaptured for the stored lead, got %+v", bus.captured)
	}
}

func TestCreateLeadPrefersSubmittedAttribution(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(repo)

	req := validLead()
	req.IPAddress = "198.51.100.7"
	req.UTMSource = "facebook"
	req.MedicareEffectiveDate = "2026-05-01"
	if _, err := svc.CreateLead(context.Background(), req, Client{IP: "203.0.113.9"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := repo.params[0]
	if *p.IPAddress != "198.51.100.7" {
		t.Fatalf("expected submitted IP, got %q", *p.IPAddress)
	}
	if p.UTMSource == nil || *p.UTMSource != "facebook" {
		t.Fatalf("expected utm source, got %v", p.UTMSource)
	}
	if p.MedicareEffectiveDate.Format(time.DateOnly) != "2026-05-01" {
		t.Fatalf("expected submitted effective date, got %v", p.MedicareEffectiveDate)
	}
}

func TestCreateLeadStripsMarkup(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(repo)

	req := validLead()
	req.LastName = "<i>Jones</i>"
	if _, err := svc.CreateLead(context.Background(), req, Client{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := *repo.params[0].LastName; got != "Jones" {
		t.Fatalf("expected stripped last name, got %q", got)
	}

	req.FirstName = "<b></b>"
	_, err := svc.CreateLead(context.Background(), req, Client{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for a markup-only name, got %v", err)
	}
	if len(repo.params) != 1 {
		t.Fatal("expected repository not to be called for the rejected lead")
	}
}

func TestCreateLeadReportsExistingApplication(t *testing.T) {
	repo := &fakeRepo{hasApps: map[string]bool{"mary.jones@example.com": true}}
	svc, bus := newTestService(repo)

	res, err := svc.CreateLead(context.Background(), validLead(), Client{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ExistingLead {
		t.Fatal("expected existingLead for an email with an application")
	}

	bus.Wait()
	if len(bus.captured) != 1 || !bus.captured[0].ExistingLead {
		t.Fatal("expected event to flag the existing lead")
	}
}

func TestCreateLeadDropsInvalidPhone(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(repo)

	req := validLead()
	req.Phone = "555-12"
	if _, err := svc.CreateLead(context.Background(), req, Client{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.params[0].Phone != nil {
		t.Fatalf("expected NULL phone, got %q", *repo.params[0].Phone)
	}
}

func TestCreateLeadWrapsRepositoryErrors(t *testing.T) {
	repo := &fakeRepo{err: errors.New("connection reset")}
	svc, bus := newTestService(repo)

	_, err := svc.CreateLead(context.Background(), validLead(), Client{})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}

	bus.Wait()
	if len(bus.captured) != 0 {
		t.Fatal("expected no event when the lead was not stored")
	}
}

func TestRequestCallPublishesEvent(t *testing.T) {
	svc, bus := newTestService(&fakeRepo{})
	premium := 142.5

	res, err := svc.RequestCall(context.Background(), transport.CallRequest{
		FirstName:       "Ann",
		LastName:        "Lee",
		Email:           "ANN@example.com",
		Phone:           "415.555.2671",
		SelectedCarrier: "Aetna",
		SelectedPlan:    "G",
		SelectedPremium: &premium,
		State:           "fl",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bus.Wait()
	if len(bus.calls) != 1 {
		t.Fatalf("expected one CallRequested, got %d", len(bus.calls))
	}
	ev := bus.calls[0]
	if ev.RequestID != res.RequestID || ev.Phone != "4155552671" || ev.Email != "ann@example.com" || ev.State != "FL" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.RequestedAt.Equal(time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)) {
		t.Fatalf("expected pinned request time, got %v", ev.RequestedAt)
	}
	if ev.SelectedPremium == nil || *ev.SelectedPremium != 142.5 {
		t.Fatalf("expected selected premium, got %v", ev.SelectedPremium)
	}
}

func TestRequestCallRejectsInvalidPhone(t *testing.T) {
	svc, bus := newTestService(&fakeRepo{})

	_, err := svc.RequestCall(context.Background(), transport.CallRequest{FirstName: "Ann", Phone: "12345"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	bus.Wait()
	if len(bus.calls) != 0 {
		t.Fatal("expected no event for an invalid phone")
	}
}
