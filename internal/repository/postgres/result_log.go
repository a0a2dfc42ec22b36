package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/email-validator/internal/domain"
)

// ResultLogRepo implements validation.ResultLog against PostgreSQL.
type ResultLogRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewResultLogRepo creates a Postgres-backed result log.
func NewResultLogRepo(db *sql.DB) *ResultLogRepo {
	return &ResultLogRepo{db: db, now: time.Now}
}

func (r *ResultLogRepo) Append(ctx context.Context, e domain.ResultLogEntry, ttl time.Duration) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO validation_results
			(id, original_email, corrected_email, status, validated_at, recheck_needed, source, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.OriginalEmail, e.CorrectedEmail, string(e.Status), e.ValidatedAt.UTC(),
		e.RecheckNeeded, e.Source, r.now().Add(ttl).UTC())
	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

func (r *ResultLogRepo) FindByEmail(ctx context.Context, email string) ([]domain.ResultLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, original_email, corrected_email, status, validated_at, recheck_needed, source
		FROM validation_results
		WHERE (LOWER(original_email) = $1 OR LOWER(corrected_email) = $1)
		  AND expires_at > $2
		ORDER BY validated_at DESC
	`, strings.ToLower(email), r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("find results: %w", err)
	}
	defer rows.Close()

	var out []domain.ResultLogEntry
	for rows.Next() {
		var (
			e      domain.ResultLogEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.OriginalEmail, &e.CorrectedEmail, &status, &e.ValidatedAt, &e.RecheckNeeded, &e.Source); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		e.Status = domain.Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}
