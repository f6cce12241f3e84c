package csg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// tokenRowID is the single row holding the shared token.
const tokenRowID = 1

// Querier is the subset of *pgxpool.Pool used by the token store.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgTokenStore keeps the shared token in the csg_tokens table.
type PgTokenStore struct {
	db Querier
}

// NewPgTokenStore creates a Postgres-backed TokenStore.
func NewPgTokenStore(db Querier) *PgTokenStore {
	return &PgTokenStore{db: db}
}

// Load reads the stored token.
func (s *PgTokenStore) Load(ctx context.Context) (Token, error) {
	var t Token
	err := s.db.QueryRow(ctx,
		`SELECT token, expires_at FROM csg_tokens WHERE id = $1`, tokenRowID,
	).Scan(&t.Value, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, ErrNoToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("load csg token: %w", err)
	}
	return t, nil
}

// Save stores token, creating the row on first use.
func (s *PgTokenStore) Save(ctx context.Context, token Token) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO csg_tokens (id, token, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`,
		tokenRowID, token.Value, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save csg token: %w", err)
	}
	return nil
}

// Clear blanks the stored token and marks it expired.
func (s *PgTokenStore) Clear(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`UPDATE csg_tokens SET token = '', expires_at = now(), updated_at = now() WHERE id = $1`,
		tokenRowID,
	)
	if err != nil {
		return fmt.Errorf("clear csg token: %w", err)
	}
	return nil
}
