package validation

import (
	"context"
	"time"

	"github.com/ignite/email-validator/internal/domain"
)

// KnownValidStore caches addresses previously confirmed valid.
type KnownValidStore interface {
	// Get returns the entry for email (matched case-insensitively), or nil
	// when it was never stored or has expired.
	Get(ctx context.Context, email string) (*domain.KnownValidEntry, error)

	// Put stores entry under its lower-cased email, replacing any existing
	// entry for that key. The store expires it after ttl.
	Put(ctx context.Context, entry domain.KnownValidEntry, ttl time.Duration) error
}

// ResultLog is the append-only record of pipeline runs.
type ResultLog interface {
	// Append stores a new record. It never overwrites earlier records, even
	// for the same address. The store expires it after ttl.
	Append(ctx context.Context, entry domain.ResultLogEntry, ttl time.Duration) error

	// FindByEmail returns unexpired records whose original or corrected
	// address matches email case-insensitively.
	FindByEmail(ctx context.Context, email string) ([]domain.ResultLogEntry, error)
}
