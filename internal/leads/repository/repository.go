package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadWriter stores captured leads.
type LeadWriter interface {
	Upsert(ctx context.Context, params UpsertLeadParams) (UpsertResult, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertLeadParams holds every column written on capture. Nil pointers are
// stored as NULL; attribution columns keep their previous value when nil.
type UpsertLeadParams struct {
	FirstName             string
	LastName              *string
	Email                 string
	Phone                 *string
	DateOfBirth           time.Time
	Gender                string
	ZipCode               string
	County                *string
	State                 *string
	TobaccoUser           bool
	MedicareEffectiveDate time.Time
	PlanPreference        *string
	BudgetPreference      *string
	CompanyPreference     *string
	SpecificCompany       *string
	UTMSource             *string
	UTMMedium             *string
	UTMCampaign           *string
	UTMContent            *string
	UTMTerm               *string
	Referrer              *string
	FormPath              string
	AcquisitionChannel    *string
	LandingPage           *string
	DeviceType            *string
	ReferrerURL           *string
	FBP                   *string
	FBC                   *string
	FBClickID             *string
	GCLID                 *string
	IPAddress             *string
	UserAgent             *string
}

// UpsertResult identifies the stored lead.
type UpsertResult struct {
	ID uuid.UUID
	// HasApplication is true when an application already referenced the
	// lead, in which case only the phone was updated.
	HasApplication bool
}

// Upsert stores a lead keyed by email. A lead that already has an
// application keeps its identifying fields and only gets a fresh phone.
func (r *Repository) Upsert(ctx context.Context, params UpsertLeadParams) (UpsertResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return UpsertResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		existingID    uuid.UUID
		applicationID *uuid.UUID
	)
	err = tx.QueryRow(ctx, `
		SELECT l.id, a.id
		FROM leads l
		LEFT JOIN applications a ON a.lead_id = l.id
		WHERE l.email = $1
		LIMIT 1
		FOR UPDATE OF l
	`, params.Email).Scan(&existingID, &applicationID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return UpsertResult{}, err
	}

	if err == nil && applicationID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE leads SET
				phone = COALESCE($2, phone),
				updated_at = now()
			WHERE id = $1
		`, existingID, params.Phone); err != nil {
			return UpsertResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{ID: existingID, HasApplication: true}, nil
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO leads (
			id, first_name, last_name, email, phone,
			date_of_birth, gender, zip_code, county, state,
			tobacco_user, medicare_effective_date,
			plan_preference, budget_preference, company_preference, specific_company,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			referrer, form_path, completed, consented,
			acquisition_channel, landing_page, device_type, referrer_url,
			stage, fbp, fbc, fb_click_id, gclid,
			ip_address, user_agent
		)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, false, true,
			$24, $25, $26, $27,
			'new', $28, $29, $30, $31,
			$32, $33
		)
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			zip_code = EXCLUDED.zip_code,
			county = EXCLUDED.county,
			state = EXCLUDED.state,
			tobacco_user = EXCLUDED.tobacco_user,
			medicare_effective_date = EXCLUDED.medicare_effective_date,
			plan_preference = EXCLUDED.plan_preference,
			budget_preference = EXCLUDED.budget_preference,
			company_preference = EXCLUDED.company_preference,
			specific_company = EXCLUDED.specific_company,
			utm_source = COALESCE(EXCLUDED.utm_source, leads.utm_source),
			utm_medium = COALESCE(EXCLUDED.utm_medium, leads.utm_medium),
			utm_campaign = COALESCE(EXCLUDED.utm_campaign, leads.utm_campaign),
			utm_content = COALESCE(EXCLUDED.utm_content, leads.utm_content),
			utm_term = COALESCE(EXCLUDED.utm_term, leads.utm_term),
			referrer = COALESCE(EXCLUDED.referrer, leads.referrer),
			acquisition_channel = COALESCE(EXCLUDED.acquisition_channel, leads.acquisition_channel),
			landing_page = COALESCE(EXCLUDED.landing_page, leads.landing_page),
			device_type = COALESCE(EXCLUDED.device_type, leads.device_type),
			referrer_url = COALESCE(EXCLUDED.referrer_url, leads.referrer_url),
			fbp = COALESCE(EXCLUDED.fbp, leads.fbp),
			fbc = COALESCE(EXCLUDED.fbc, leads.fbc),
			fb_click_id = COALESCE(EXCLUDED.fb_click_id, leads.fb_click_id),
			gclid = COALESCE(EXCLUDED.gclid, leads.gclid),
			ip_address = COALESCE(EXCLUDED.ip_address, leads.ip_address),
			user_agent = COALESCE(EXCLUDED.user_agent, leads.user_agent),
			stage = 'new',
			updated_at = now()
		RETURNING id
	`,
		uuid.New(), params.FirstName, params.LastName, params.Email, params.Phone,
		params.DateOfBirth, params.Gender, params.ZipCode, params.County, params.State,
		params.TobaccoUser, params.MedicareEffectiveDate,
		params.PlanPreference, params.BudgetPreference, params.CompanyPreference, params.SpecificCompany,
		params.UTMSource, params.UTMMedium, params.UTMCampaign, params.UTMContent, params.UTMTerm,
		params.Referrer, params.FormPath,
		params.AcquisitionChannel, params.LandingPage, params.DeviceType, params.ReferrerURL,
		params.FBP, params.FBC, params.FBClickID, params.GCLID,
		params.IPAddress, params.UserAgent,
	).Scan(&id)
	if err != nil {
		return UpsertResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{ID: id}, nil
}

var _ LeadWriter = (*Repository)(nil)
