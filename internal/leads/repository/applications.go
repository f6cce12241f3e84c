package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when a lead or application does not exist or
	// does not belong to the given lead.
	ErrNotFound = errors.New("not found")
	// ErrSuperseded is returned when saving an application that was replaced
	// by a copy.
	ErrSuperseded = errors.New("application superseded")
)

// Application statuses.
const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusSuperseded = "superseded"
)

// ApplicationStore persists enrollment applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, params CreateApplicationParams) (CreateApplicationResult, error)
	LoadApplication(ctx context.Context, id, leadID uuid.UUID) (ApplicationRecord, error)
	SaveApplication(ctx context.Context, params SaveApplicationParams) error
}

// CreateApplicationParams describes a new draft application. Metadata and
// HealthAnswers are JSON objects.
type CreateApplicationParams struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	QuoteID       *string
	CarrierName   *string
	PlanSelection *string
	Metadata      []byte
	HealthAnswers []byte
	CopyFrom      *uuid.UUID
	// CopyDropKeys are metadata keys never carried over from CopyFrom.
	CopyDropKeys []string
	Phone        *string
	// ResumeTokenHash is stored when a phone is known, from Phone or the lead.
	ResumeTokenHash string
	ResumeExpiresAt time.Time
}

// CreateApplicationResult reports what Create did besides the insert.
type CreateApplicationResult struct {
	Copied       bool
	ResumeIssued bool
}

// ApplicationRecord is an application joined with its lead.
type ApplicationRecord struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	Status            string
	QuoteID           *string
	CarrierName       *string
	PlanSelection     *string
	Metadata          []byte
	HealthAnswers     []byte
	LastPageCompleted *string

	LeadFirstName   string
	LeadLastName    *string
	LeadEmail       string
	LeadPhone       *string
	LeadDateOfBirth time.Time
	LeadGender      string
	LeadCity        *string
	LeadState       *string
	LeadZipCode     string
	LeadCounty      *string
}

// SaveApplicationParams merges progress into an application. Metadata and
// HealthAnswers are JSON objects merged key by key over the stored ones.
type SaveApplicationParams struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	Metadata      []byte
	HealthAnswers []byte
	LastPage      *string
	Phone         *string
	City          *string
}

// CreateApplication inserts a draft application for an existing lead. When
// CopyFrom names an application of the same lead, its metadata and health
// answers seed the new one and it is marked superseded. A CopyFrom that does
// not belong to the lead is ignored.
func (r *Repository) CreateApplication(ctx context.Context, params CreateApplicationParams) (CreateApplicationResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return CreateApplicationResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var leadPhone *string
	err = tx.QueryRow(ctx, `SELECT phone FROM leads WHERE id = $1 FOR SHARE`, params.LeadID).Scan(&leadPhone)
	if errors.Is(err, pgx.ErrNoRows) {
		return CreateApplicationResult{}, ErrNotFound
	}
	if err != nil {
		return CreateApplicationResult{}, err
	}

	var result CreateApplicationResult
	baseMetadata := []byte(`{}`)
	baseHealth := []byte(`{}`)
	if params.CopyFrom != nil {
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(metadata - $3::text[], metadata), health_answers
			FROM applications
			WHERE id = $1 AND lead_id = $2
			FOR UPDATE
		`, *params.CopyFrom, params.LeadID, params.CopyDropKeys).Scan(&baseMetadata, &baseHealth)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			baseMetadata, baseHealth = []byte(`{}`), []byte(`{}`)
		case err != nil:
			return CreateApplicationResult{}, err
		default:
			result.Copied = true
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO applications (
			id, lead_id, status, quote_id, carrier_name, plan_selection,
			metadata, health_answers
		)
		VALUES ($1, $2, 'draft', $3, $4, $5, $6::jsonb || $7::jsonb, $8::jsonb || $9::jsonb)
	`,
		params.ID, params.LeadID, params.QuoteID, params.CarrierName, params.PlanSelection,
		baseMetadata, jsonObject(params.Metadata), baseHealth, jsonObject(params.HealthAnswers),
	); err != nil {
		return CreateApplicationResult{}, err
	}

	if result.Copied {
		if _, err := tx.Exec(ctx, `
			UPDATE applications SET status = 'superseded', updated_at = now()
			WHERE id = $1
		`, *params.CopyFrom); err != nil {
			return CreateApplicationResult{}, err
		}
	}

	phone := params.Phone
	if phone == nil {
		phone = leadPhone
	}
	if phone != nil && params.ResumeTokenHash != "" {
		if _, err := tx.Exec(ctx, `
			INSERT INTO resume_tokens (token_hash, lead_id, application_id, phone_number, expires_at)
			VALUES ($1, $2, $3, $4, $5)
		`, params.ResumeTokenHash, params.LeadID, params.ID, *phone, params.ResumeExpiresAt); err != nil {
			return CreateApplicationResult{}, err
		}
		result.ResumeIssued = true
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateApplicationResult{}, err
	}
	return result, nil
}

// LoadApplication returns the application with its lead, scoped to leadID.
func (r *Repository) LoadApplication(ctx context.Context, id, leadID uuid.UUID) (ApplicationRecord, error) {
	var rec ApplicationRecord
	err := r.pool.QueryRow(ctx, `
		SELECT
			a.id, a.lead_id, a.status, a.quote_id, a.carrier_name, a.plan_selection,
			a.metadata, a.health_answers, a.last_page_completed,
			l.first_name, l.last_name, l.email, l.phone, l.date_of_birth,
			l.gender, l.city, l.state, l.zip_code, l.county
		FROM applications a
		JOIN leads l ON l.id = a.lead_id
		WHERE a.id = $1 AND a.lead_id = $2
	`, id, leadID).Scan(
		&rec.ID, &rec.LeadID, &rec.Status, &rec.QuoteID, &rec.CarrierName, &rec.PlanSelection,
		&rec.Metadata, &rec.HealthAnswers, &rec.LastPageCompleted,
		&rec.LeadFirstName, &rec.LeadLastName, &rec.LeadEmail, &rec.LeadPhone, &rec.LeadDateOfBirth,
		&rec.LeadGender, &rec.LeadCity, &rec.LeadState, &rec.LeadZipCode, &rec.LeadCounty,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ApplicationRecord{}, ErrNotFound
	}
	if err != nil {
		return ApplicationRecord{}, err
	}
	return rec, nil
}

// SaveApplication merges progress into the application and moves a draft to
// in_progress. The lead's phone and city are refreshed when given; its name
// is left alone.
func (r *Repository) SaveApplication(ctx context.Context, params SaveApplicationParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `
		SELECT status FROM applications
		WHERE id = $1 AND lead_id = $2
		FOR UPDATE
	`, params.ID, params.LeadID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status == StatusSuperseded {
		return ErrSuperseded
	}

	if _, err := tx.Exec(ctx, `
		UPDATE applications SET
			metadata = metadata || $2::jsonb,
			health_answers = health_answers || $3::jsonb,
			status = CASE WHEN status = 'draft' THEN 'in_progress' ELSE status END,
			last_page_completed = COALESCE($4, last_page_completed),
			last_activity_at = now(),
			updated_at = now()
		WHERE id = $1
	`, params.ID, jsonObject(params.Metadata), jsonObject(params.HealthAnswers), params.LastPage); err != nil {
		return err
	}

	if params.Phone != nil || params.City != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE leads SET
				phone = COALESCE($2, phone),
				city = COALESCE($3, city),
				updated_at = now()
			WHERE id = $1
		`, params.LeadID, params.Phone, params.City); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func jsonObject(b []byte) []byte {
	if len(b) == 0 {
		return []byte(`{}`)
	}
	return b
}

var _ ApplicationStore = (*Repository)(nil)
