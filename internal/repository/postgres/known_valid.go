package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/email-validator/internal/domain"
)

// KnownValidRepo implements validation.KnownValidStore against PostgreSQL.
type KnownValidRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewKnownValidRepo creates a Postgres-backed known-valid store.
func NewKnownValidRepo(db *sql.DB) *KnownValidRepo {
	return &KnownValidRepo{db: db, now: time.Now}
}

func (r *KnownValidRepo) Get(ctx context.Context, email string) (*domain.KnownValidEntry, error) {
	var e domain.KnownValidEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT email, validated_at, source
		FROM known_valid_emails
		WHERE email = $1 AND expires_at > $2
	`, strings.ToLower(email), r.now().UTC()).Scan(&e.Email, &e.ValidatedAt, &e.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get known-valid: %w", err)
	}
	return &e, nil
}

func (r *KnownValidRepo) Put(ctx context.Context, e domain.KnownValidEntry, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO known_valid_emails (email, validated_at, source, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET validated_at = $2, source = $3, expires_at = $4
	`, strings.ToLower(e.Email), e.ValidatedAt.UTC(), e.Source, r.now().Add(ttl).UTC())
	if err != nil {
		return fmt.Errorf("put known-valid: %w", err)
	}
	return nil
}
