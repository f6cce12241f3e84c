package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"medsupp_backend/internal/adapters/storage"
	"medsupp_backend/internal/carriers"
	"medsupp_backend/internal/csg"
	"medsupp_backend/internal/quotes/stablescore"
	"medsupp_backend/internal/quotes/transport"
	"medsupp_backend/platform/apperr"
	"medsupp_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeFetcher struct {
	result *csg.QuoteResult
	err    error
	got    csg.QuoteParams
}

func (f *fakeFetcher) Quotes(_ context.Context, p csg.QuoteParams) (*csg.QuoteResult, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSnapshots struct {
	err   error
	saved []uuid.UUID
}

func (f *fakeSnapshots) Save(_ context.Context, id uuid.UUID, _ time.Time, _ any) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, id)
	return nil
}

func (f *fakeSnapshots) DownloadURL(_ context.Context, id uuid.UUID, year int, month time.Month) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{FileKey: fmt.Sprintf("quotes/%04d/%02d/%s.json", year, int(month), id)}, nil
}

func f64(v float64) *float64 { return &v }

func history(values ...float64) []csg.RateIncrease {
	out := make([]csg.RateIncrease, len(values))
	for i, v := range values {
		out[i] = csg.RateIncrease{Increase: v}
	}
	return out
}

func rawQuote(name, naic, plan string, cents float64, rating string, increases []csg.RateIncrease) csg.RawQuote {
	return csg.RawQuote{
		Key:           name + "-" + plan,
		Plan:          plan,
		State:         "TX",
		Rate:          csg.Rate{Month: cents},
		RateIncreases: increases,
		CompanyBase:   csg.CompanyBase{Name: name, NAIC: naic, AMBestRating: rating},
	}
}

func sampleResult() *csg.QuoteResult {
	humana := rawQuote("Humana Insurance Company", "73288", "G", 12000, "A", history(0.02, 0.02, 0.02))
	humana.CompanyBase.StateMarketData = []csg.StateMarketData{{Premiums: f64(1000), Claims: f64(700)}}
	humana.CompanyBase.MarketData = []csg.MarketDataSummary{{
		Year:     2024,
		National: &csg.NationalMarketData{Premiums: f64(2000), Claims: f64(1500)},
	}}

	pricier := humana
	pricier.Key = "humana-dup"
	pricier.Rate = csg.Rate{Month: 13000}

	bundled := humana
	bundled.Key = "humana-hhd"
	bundled.Rate = csg.Rate{Month: 9000}
	bundled.ViewType = []string{"with_hhd"}

	aetna := rawQuote("Aetna Health Insurance Co", "72052", "G", 15000, "B+", history(0.10, 0.10, 0.10))

	cigna := rawQuote("Cigna National Health Ins Co", "61727", "G", 10000, "A", history(0.01))
	cigna.Discounts = []csg.Discount{{Type: "percent", Value: 0.5, Category: "roommate"}}

	blocked := rawQuote("Zeta Mutual", "99999", "G", 5000, "A", nil)

	return &csg.QuoteResult{
		Quotes:     []csg.RawQuote{humana, pricier, bundled, aetna, cigna, blocked},
		LoggingKey: "log-1",
		State:      "TX",
	}
}

func newTestService(t *testing.T, fetcher QuoteFetcher) *Service {
	t.Helper()
	catalog, err := carriers.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	svc := New(fetcher, catalog, logger.New("test"))
	svc.now = func() time.Time { return time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func baseRequest() transport.QuoteRequest {
	return transport.QuoteRequest{ZipCode: "75001", Age: 66, Gender: "Male", PlanType: "G"}
}

func TestGetQuotes_RanksFilteredAndDedupedQuotes(t *testing.T) {
	fetcher := &fakeFetcher{result: sampleResult()}
	svc := newTestService(t, fetcher)

	resp, err := svc.GetQuotes(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetcher.got.Gender != "M" || fetcher.got.Age != 66 || fetcher.got.Zip5 != "75001" || fetcher.got.Plan != "G" {
		t.Fatalf("unexpected fetch params: %+v", fetcher.got)
	}
	if !resp.Success || resp.State != "TX" || resp.LoggingKey != "log-1" || resp.QuotingAge != 66 {
		t.Fatalf("unexpected response envelope: %+v", resp)
	}

	quotes := resp.Data.Quotes
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes after filter and dedupe, got %d", len(quotes))
	}

	// Humana 98 (established), Aetna 51 (established), Cigna 24 (new entrant)
	want := []struct {
		display string
		score   int
		premium float64
		model   stablescore.Model
	}{
		{"Humana", 98, 120, stablescore.ModelEstablished},
		{"Aetna", 51, 150, stablescore.ModelEstablished},
		{"Cigna", 24, 100, stablescore.ModelNewEntrant},
	}
	for i, w := range want {
		q := quotes[i]
		if q.DisplayName != w.display || q.StableScore != w.score || q.MonthlyPremium != w.premium || q.Model != w.model {
			t.Fatalf("rank %d: expected %+v, got %s score=%d premium=%v model=%s", i+1, w, q.DisplayName, q.StableScore, q.MonthlyPremium, q.Model)
		}
		if q.FinalScore != q.StableScore || q.PersonalizationBoost != 0 {
			t.Fatalf("rank %d: expected no boost without preferences", i+1)
		}
		if q.LoggingKey != "log-1" {
			t.Fatalf("rank %d: expected logging key on quote", i+1)
		}
	}

	if quotes[1].ApplicationFee == nil || *quotes[1].ApplicationFee != 20 {
		t.Fatalf("expected Aetna application fee 20, got %v", quotes[1].ApplicationFee)
	}
	if quotes[0].ApplicationFee != nil {
		t.Fatal("expected no application fee for Humana")
	}
	if quotes[0].Market.National == nil || quotes[0].Market.National.LossRatio != "75.0" || quotes[0].Market.National.Year != 2024 {
		t.Fatalf("unexpected national market data: %+v", quotes[0].Market.National)
	}
	if quotes[2].Details.IsTeaserRate == nil || !*quotes[2].Details.IsTeaserRate {
		t.Fatal("expected the undercutting new entrant to be flagged as a teaser rate")
	}
	if quotes[2].Discount.DiscountApplied {
		t.Fatal("expected no discount without a household member")
	}
}

func TestGetQuotes_AppliesHouseholdDiscount(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{result: sampleResult()})

	req := baseRequest()
	req.HasHouseholdMember = "yes"
	resp, err := svc.GetQuotes(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var cigna *transport.Quote
	for i := range resp.Data.Quotes {
		if resp.Data.Quotes[i].DisplayName == "Cigna" {
			cigna = &resp.Data.Quotes[i]
		}
	}
	if cigna == nil {
		t.Fatal("expected Cigna quote")
	}
	if cigna.MonthlyPremium != 50 || !cigna.Discount.DiscountApplied {
		t.Fatalf("expected discounted premium 50, got %v (applied=%v)", cigna.MonthlyPremium, cigna.Discount.DiscountApplied)
	}
	if cigna.Discount.OriginalRate == nil || *cigna.Discount.OriginalRate != 100 {
		t.Fatalf("expected original rate 100, got %v", cigna.Discount.OriginalRate)
	}
	if cigna.Discount.DiscountCategory != "roommate" {
		t.Fatalf("expected roommate category, got %q", cigna.Discount.DiscountCategory)
	}
}

func TestGetQuotes_PersonalizationBoost(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{result: sampleResult()})

	req := baseRequest()
	req.UserPreferences = &stablescore.Preferences{PlanPreference: "G", SpecificCompany: "cigna"}
	resp, err := svc.GetQuotes(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, q := range resp.Data.Quotes {
		want := 5
		if q.DisplayName == "Cigna" {
			want = 10
		}
		if q.PersonalizationBoost != want || q.FinalScore != q.StableScore+want {
			t.Fatalf("%s: expected boost %d, got %d (final %d)", q.DisplayName, want, q.PersonalizationBoost, q.FinalScore)
		}
	}
	for i := 1; i < len(resp.Data.Quotes); i++ {
		if resp.Data.Quotes[i-1].FinalScore < resp.Data.Quotes[i].FinalScore {
			t.Fatal("expected quotes sorted by final score descending")
		}
	}
}

func TestGetQuotes_DateOfBirthDrivesQuotingAge(t *testing.T) {
	fetcher := &fakeFetcher{result: &csg.QuoteResult{}}
	svc := newTestService(t, fetcher)

	req := transport.QuoteRequest{ZipCode: "75001", DateOfBirth: "1961-08-01", Gender: "F"}
	resp, err := svc.GetQuotes(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// born on the 1st: coverage starts July 2026 at age 65
	if fetcher.got.EffectiveDate != "2026-07-01" || fetcher.got.Age != 65 {
		t.Fatalf("unexpected params: %+v", fetcher.got)
	}
	if resp.QuotingAge != 65 || len(resp.Data.Quotes) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetQuotes_RejectsOutOfRangeAge(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{result: &csg.QuoteResult{}})

	req := baseRequest()
	req.Age = 30
	_, err := svc.GetQuotes(context.Background(), req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetQuotes_TranslatesProviderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"circuit open", csg.ErrCircuitOpen, apperr.KindUnavailable},
		{"max sessions", csg.ErrMaxSessions, apperr.KindUnavailable},
		{"paced", fmt.Errorf("%w: deadline", csg.ErrPaced), apperr.KindTooManyRequests},
		{"bad request", &csg.StatusError{Op: "quotes", StatusCode: 400, Body: "bad zip"}, apperr.KindBadRequest},
		{"server error", &csg.StatusError{Op: "quotes", StatusCode: 500}, apperr.KindUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, &fakeFetcher{err: tc.err})
			_, err := svc.GetQuotes(context.Background(), baseRequest())
			if !apperr.Is(err, tc.want) {
				t.Fatalf("expected kind %v, got %v", tc.want, err)
			}
		})
	}
}

func TestGetQuotes_Snapshots(t *testing.T) {
	snaps := &fakeSnapshots{}
	svc := newTestService(t, &fakeFetcher{result: sampleResult()})
	svc.SetSnapshotArchive(snaps)

	resp, err := svc.GetQuotes(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps.saved) != 1 || resp.SnapshotID != snaps.saved[0].String() {
		t.Fatalf("expected snapshot id %v in response, got %q", snaps.saved, resp.SnapshotID)
	}

	failing := &fakeSnapshots{err: errors.New("bucket gone")}
	svc.SetSnapshotArchive(failing)
	resp, err = svc.GetQuotes(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("snapshot failure must not fail the request: %v", err)
	}
	if resp.SnapshotID != "" {
		t.Fatal("expected no snapshot id after a failed archive")
	}
}

func TestSnapshotURL(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{})
	if _, err := svc.SnapshotURL(context.Background(), 2026, 1, uuid.NewString()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found without archive, got %v", err)
	}

	svc.SetSnapshotArchive(&fakeSnapshots{})
	id := uuid.New()
	url, err := svc.SnapshotURL(context.Background(), 2026, 2, id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url.FileKey != "quotes/2026/02/"+id.String()+".json" {
		t.Fatalf("unexpected key %q", url.FileKey)
	}

	if _, err := svc.SnapshotURL(context.Background(), 2026, 13, id.String()); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.SnapshotURL(context.Background(), 2026, 2, "nope"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartDate(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{})

	got, err := svc.StartDate("1961-08-20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StartDate != "2026-08-01" || got.QuotingAge != 65 {
		t.Fatalf("unexpected start date: %+v", got)
	}

	if _, err := svc.StartDate("08/20/1961"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.StartDate("2030-01-01"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for future dob, got %v", err)
	}
}

func TestTokenAdminRequiresManager(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{})
	if err := svc.RefreshToken(context.Background()); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
