package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"medsupp_backend/internal/adapters/storage"
	"medsupp_backend/internal/carriers"
	"medsupp_backend/internal/csg"
	"medsupp_backend/internal/quotes/stablescore"
	"medsupp_backend/internal/quotes/transport"
	"medsupp_backend/platform/apperr"
	"medsupp_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	minQuotingAge = 50
	maxQuotingAge = 120

	// topLogged is how many ranked quotes are summarised in the log.
	topLogged = 5

	snapshotTimeout = 5 * time.Second
)

// QuoteFetcher retrieves raw quotes from the carrier data provider.
type QuoteFetcher interface {
	Quotes(ctx context.Context, p csg.QuoteParams) (*csg.QuoteResult, error)
}

// TokenAdmin exposes manual control over the provider session token.
type TokenAdmin interface {
	ForceRefresh(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SnapshotArchive stores ranked quote responses for later audit.
type SnapshotArchive interface {
	Save(ctx context.Context, id uuid.UUID, at time.Time, payload any) error
	DownloadURL(ctx context.Context, id uuid.UUID, year int, month time.Month) (*storage.PresignedURL, error)
}

// Service ranks Medicare Supplement quotes by StableScore.
type Service struct {
	fetcher   QuoteFetcher
	catalog   *carriers.Catalog
	log       *logger.Logger
	tokens    TokenAdmin      // optional
	snapshots SnapshotArchive // optional
	now       func() time.Time
}

// New creates a new quotes service
func New(fetcher QuoteFetcher, catalog *carriers.Catalog, log *logger.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
}

// SetTokenAdmin injects the token manager used by the admin endpoints.
func (s *Service) SetTokenAdmin(t TokenAdmin) {
	s.tokens = t
}

// SetSnapshotArchive enables archiving of every ranked response.
func (s *Service) SetSnapshotArchive(w SnapshotArchive) {
	s.snapshots = w
}

// candidate is a quote moving through the pipeline.
type candidate struct {
	raw      csg.RawQuote
	premium  float64
	discount householdDiscount
}

// GetQuotes fetches, filters, scores and ranks quotes for one shopper.
func (s *Service) GetQuotes(ctx context.Context, req transport.QuoteRequest) (*transport.QuoteResponse, error) {
	age, effectiveDate, err := s.quotingAge(req)
	if err != nil {
		return nil, err
	}

	result, err := s.fetcher.Quotes(ctx, csg.QuoteParams{
		Zip5:          req.ZipCode,
		Age:           age,
		Gender:        genderCode(req.Gender),
		Tobacco:       req.Tobacco,
		Plan:          strings.TrimSpace(req.PlanType),
		EffectiveDate: effectiveDate,
	})
	if err != nil {
		return nil, translateFetchError(err)
	}

	log := s.log.WithContext(ctx)
	eligible := s.eligible(log, result.Quotes, req)
	quotes, err := s.rank(ctx, eligible, req.UserPreferences, result.LoggingKey, effectiveDate)
	if err != nil {
		return nil, err
	}

	for i, q := range quotes {
		if i == topLogged {
			break
		}
		log.Info("ranked quote",
			"rank", i+1,
			"carrier", q.CarrierName,
			"plan", q.PlanName,
			"premium", q.MonthlyPremium,
			"model", q.Model,
			"stable_score", q.StableScore,
			"boost", q.PersonalizationBoost,
			"final_score", q.FinalScore,
		)
	}

	resp := &transport.QuoteResponse{
		Success:    true,
		QuotingAge: age,
		State:      result.State,
		LoggingKey: result.LoggingKey,
		Data:       transport.QuoteDataList{Quotes: quotes},
	}
	s.archive(ctx, resp)
	return resp, nil
}

// eligible applies the carrier whitelist, drops household-bundled views,
// applies household discounts and keeps the cheapest quote per carrier and plan.
func (s *Service) eligible(log *logger.Logger, raw []csg.RawQuote, req transport.QuoteRequest) []candidate {
	refs := make([]carriers.Ref, len(raw))
	for i, q := range raw {
		refs[i] = carriers.Ref{Name: q.CompanyBase.Name, NAIC: q.CompanyBase.NAIC}
	}
	stats := s.catalog.FilterStats(refs)
	log.Info("carrier filter", "total", stats.Total, "allowed", stats.Allowed, "filtered", stats.Filtered)
	for _, fc := range stats.FilteredCarriers {
		log.Warn("carrier not in whitelist", "carrier", fc.Name, "naic", fc.NAIC, "quotes", fc.Count)
	}

	household := req.HasHouseholdMember == "yes"
	sameCompany := req.SameCompanyInsurance == "yes"

	index := make(map[string]int)
	out := make([]candidate, 0, len(raw))
	for _, q := range raw {
		if !s.catalog.IsAllowed(q.CompanyBase.Name) || q.HasViewType("with_hhd") {
			continue
		}

		c := candidate{raw: q, discount: householdDiscount{RateCents: q.Rate.Month, OriginalCents: q.Rate.Month}}
		if household {
			c.discount = applyHouseholdDiscounts(q, sameCompany)
			if c.discount.Applied {
				log.Debug("household discount applied",
					"carrier", q.CompanyBase.Name,
					"base", c.discount.OriginalCents/100,
					"final", c.discount.RateCents/100,
					"category", c.discount.Category,
				)
			}
		}
		c.premium = c.discount.RateCents / 100
		if !isFinite(c.premium) || c.premium < 0 {
			c.premium = 0
		}

		key := q.CompanyBase.NAIC + "-" + q.Plan
		if i, ok := index[key]; ok {
			if c.premium < out[i].premium {
				out[i] = c
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}

	log.Info("eligible quotes", "count", len(out))
	return out
}

// rank scores every candidate, applies the personalization boost and sorts
// by final score, highest first. Ties keep their eligibility order.
func (s *Service) rank(ctx context.Context, cands []candidate, prefs *stablescore.Preferences, loggingKey, effectiveDate string) ([]transport.Quote, error) {
	var peers, premiums []float64
	for _, c := range cands {
		premiums = append(premiums, c.premium)
		if stablescore.IsEstablished(len(c.raw.RateIncreases)) {
			peers = append(peers, c.premium)
		}
	}

	quotes := make([]transport.Quote, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			quotes[i] = s.buildQuote(cands[i], peers, premiums, prefs, loggingKey, effectiveDate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score quotes: %w", err)
	}

	sort.SliceStable(quotes, func(a, b int) bool {
		return quotes[a].FinalScore > quotes[b].FinalScore
	})
	return quotes, nil
}

func (s *Service) buildQuote(c candidate, peers, premiums []float64, prefs *stablescore.Preferences, loggingKey, effectiveDate string) transport.Quote {
	company := c.raw.CompanyBase
	carrier := company.Name
	if carrier == "" {
		carrier = "Unknown"
	}
	rating := company.AMBestRating
	if rating == "" {
		rating = "NR"
	}

	in := stablescore.Input{
		RateIncreases:         make([]stablescore.RateIncrease, len(c.raw.RateIncreases)),
		Rating:                rating,
		MonthlyPremium:        c.premium,
		PeerEstablishedPrices: peers,
	}
	for i, r := range c.raw.RateIncreases {
		in.RateIncreases[i] = stablescore.RateIncrease{Increase: r.Increase, Date: r.Date}
	}
	stateData := company.LatestStateMarketData()
	if stateData != nil {
		in.Premiums = stateData.Premiums
		in.Claims = stateData.Claims
	}

	scored := stablescore.Score(in)
	boost := stablescore.PersonalizationBoost(stablescore.BoostQuote{
		CarrierName:    carrier,
		PlanName:       c.raw.Plan,
		StableScore:    scored.Score,
		MonthlyPremium: c.premium,
	}, prefs, premiums)

	s.log.Debug("scored quote",
		"carrier", carrier,
		"plan", c.raw.Plan,
		"premium", c.premium,
		"model", scored.Model,
		"score", scored.Score,
		"weights", scored.WeightsUsed,
	)

	display := s.catalog.Display(carrier)
	q := transport.Quote{
		CarrierName:          carrier,
		DisplayName:          display.DisplayName,
		LogoURL:              display.LogoURL,
		PlanName:             c.raw.Plan,
		MonthlyPremium:       c.premium,
		StableScore:          scored.Score,
		PersonalizationBoost: boost,
		FinalScore:           scored.Score + boost,
		Model:                scored.Model,
		Components:           scored.Components,
		Details:              scored.Details,
		AMBestRating:         rating,
		RateIncreases:        c.raw.RateIncreases,
		QuoteKey:             c.raw.Key,
		LoggingKey:           loggingKey,
		HasEApp:              c.raw.ContextualData.HasEApp,
		CompanyNAIC:          company.NAIC,
		Discount: transport.DiscountInfo{
			Discounts:        c.raw.Discounts,
			DiscountCategory: c.raw.DiscountCategory,
			DiscountApplied:  c.discount.Applied,
		},
		Market: transport.MarketData{
			State:            stateData,
			AMBestRatingDate: company.AMBestRatingDate,
			EffectiveDate:    effectiveDate,
			Fees:             c.raw.Fees,
		},
	}
	if q.RateIncreases == nil {
		q.RateIncreases = []csg.RateIncrease{}
	}
	if q.Discount.Discounts == nil {
		q.Discount.Discounts = []csg.Discount{}
	}
	if c.discount.Applied {
		original := c.discount.OriginalCents / 100
		q.Discount.OriginalRate = &original
		q.Discount.DiscountCategory = c.discount.Category
	}
	if fee, ok := s.catalog.ApplicationFee(display.DisplayName); ok {
		amount := fee.ApplicationFee
		q.ApplicationFee = &amount
	}
	if national, year := company.LatestNationalMarketData(); national != nil {
		q.Market.National = &transport.NationalMarketData{
			Premiums:  national.Premiums,
			Claims:    national.Claims,
			LossRatio: nationalLossRatio(national),
			Year:      year,
		}
	}
	return q
}

// quotingAge resolves the age sent to the provider. A date of birth takes
// precedence over a stated age; without an effective date the recommended
// Medigap start month is used.
func (s *Service) quotingAge(req transport.QuoteRequest) (int, string, error) {
	if req.DateOfBirth == "" {
		if req.Age < minQuotingAge || req.Age > maxQuotingAge {
			return 0, "", apperr.Validation("age must be between 50 and 120")
		}
		return req.Age, req.EffectiveDate, nil
	}

	dob, err := time.Parse(time.DateOnly, req.DateOfBirth)
	if err != nil {
		return 0, "", apperr.Validation("dateOfBirth must be YYYY-MM-DD")
	}

	var effective time.Time
	if req.EffectiveDate != "" {
		effective, err = time.Parse(time.DateOnly, req.EffectiveDate)
		if err != nil {
			return 0, "", apperr.Validation("effectiveDate must be YYYY-MM-DD")
		}
	} else {
		effective = StartDate(dob, s.now())
	}

	age := RateAge(dob, effective)
	if age < minQuotingAge || age > maxQuotingAge {
		return 0, "", apperr.Validation("age must be between 50 and 120")
	}
	return age, effective.Format(time.DateOnly), nil
}

// StartDate returns the recommended coverage start for a date of birth.
func (s *Service) StartDate(dateOfBirth string) (*transport.StartDateResponse, error) {
	dob, err := time.Parse(time.DateOnly, dateOfBirth)
	if err != nil {
		return nil, apperr.Validation("dob must be YYYY-MM-DD")
	}
	now := s.now()
	if dob.After(now) {
		return nil, apperr.Validation("dob must be in the past")
	}

	start := StartDate(dob, now)
	return &transport.StartDateResponse{
		StartDate:  start.Format(time.DateOnly),
		Year:       start.Year(),
		Month:      int(start.Month()),
		QuotingAge: RateAge(dob, start),
	}, nil
}

// RefreshToken forces a new provider session.
func (s *Service) RefreshToken(ctx context.Context) error {
	if s.tokens == nil {
		return apperr.Internal("token management not configured")
	}
	if _, err := s.tokens.ForceRefresh(ctx); err != nil {
		return translateFetchError(err)
	}
	s.log.WithContext(ctx).Info("csg token force-refreshed by admin")
	return nil
}

// ClearToken drops the stored provider session.
func (s *Service) ClearToken(ctx context.Context) error {
	if s.tokens == nil {
		return apperr.Internal("token management not configured")
	}
	if err := s.tokens.Clear(ctx); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to clear token", err)
	}
	s.log.WithContext(ctx).Info("csg token cleared by admin")
	return nil
}

func (s *Service) archive(ctx context.Context, resp *transport.QuoteResponse) {
	if s.snapshots == nil {
		return
	}

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	if err := s.snapshots.Save(ctx, id, s.now(), resp); err != nil {
		s.log.WithContext(ctx).Error("quote snapshot failed", "snapshot_id", id, "error", err)
		return
	}
	resp.SnapshotID = id.String()
}

// SnapshotURL returns a short-lived download link for an archived response.
func (s *Service) SnapshotURL(ctx context.Context, year, month int, id string) (*storage.PresignedURL, error) {
	if s.snapshots == nil {
		return nil, apperr.NotFound("quote snapshots are not enabled")
	}
	snapshotID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid snapshot id")
	}
	if year < 2000 || month < 1 || month > 12 {
		return nil, apperr.Validation("invalid snapshot month")
	}

	url, err := s.snapshots.DownloadURL(ctx, snapshotID, year, time.Month(month))
	if err != nil {
		return nil, apperr.Unavailable("failed to create snapshot link", err)
	}
	return url, nil
}

func translateFetchError(err error) error {
	var status *csg.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, csg.ErrCircuitOpen):
		return apperr.Unavailable("quote service temporarily unavailable", err)
	case errors.Is(err, csg.ErrMaxSessions):
		return apperr.Unavailable("quote provider session limit reached", err)
	case errors.Is(err, csg.ErrPaced):
		return apperr.Wrap(apperr.KindTooManyRequests, "quote service is busy, try again shortly", err)
	case csg.IsClientError(err) && errors.As(err, &status):
		return apperr.BadRequest("quote request rejected by provider").WithDetails(status.Body)
	default:
		return apperr.Unavailable("failed to fetch quotes", err)
	}
}

func genderCode(gender string) string {
	if strings.EqualFold(gender, "male") || gender == "M" {
		return "M"
	}
	return "F"
}

func nationalLossRatio(n *csg.NationalMarketData) string {
	if n.Premiums == nil || n.Claims == nil || *n.Premiums <= 0 || *n.Claims == 0 {
		return ""
	}
	ratio := *n.Claims / *n.Premiums * 100
	if !isFinite(ratio) {
		return ""
	}
	return fmt.Sprintf("%.1f", ratio)
}
