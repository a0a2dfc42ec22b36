// Package redisstore keeps known-valid addresses and validation results in
// Redis. Expiry is delegated to Redis key TTLs, so an expired entry is simply
// a missing key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/email-validator/internal/domain"
)

const (
	knownValidPrefix = "email_validator:known_valid:"
	resultPrefix     = "email_validator:result:"
	resultIndex      = "email_validator:results_by_email:"
)

// Store implements both validation.KnownValidStore and validation.ResultLog.
type Store struct {
	client *redis.Client
}

// New wraps an existing client. The caller owns the client's lifetime.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func knownValidKey(email string) string {
	return knownValidPrefix + strings.ToLower(email)
}

func indexKey(email string) string {
	return resultIndex + strings.ToLower(email)
}

// Get returns the known-valid entry for email, or nil when the key is gone.
func (s *Store) Get(ctx context.Context, email string) (*domain.KnownValidEntry, error) {
	raw, err := s.client.Get(ctx, knownValidKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get known-valid: %w", err)
	}
	var entry domain.KnownValidEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding known-valid entry: %w", err)
	}
	return &entry, nil
}

// Put overwrites the entry and resets its TTL.
func (s *Store) Put(ctx context.Context, entry domain.KnownValidEntry, ttl time.Duration) error {
	entry.Email = strings.ToLower(entry.Email)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding known-valid entry: %w", err)
	}
	if err := s.client.Set(ctx, knownValidKey(entry.Email), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set known-valid: %w", err)
	}
	return nil
}

// Append stores the entry under its ID and indexes it by both addresses.
// Index sets are scored by validation time and share the entry's TTL.
func (s *Store) Append(ctx context.Context, entry domain.ResultLogEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding result entry: %w", err)
	}

	score := float64(entry.ValidatedAt.UnixNano())
	keys := []string{indexKey(entry.OriginalEmail)}
	if !strings.EqualFold(entry.OriginalEmail, entry.CorrectedEmail) {
		keys = append(keys, indexKey(entry.CorrectedEmail))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resultPrefix+entry.ID, data, ttl)
		for _, k := range keys {
			pipe.ZAdd(ctx, k, redis.Z{Score: score, Member: entry.ID})
			pipe.Expire(ctx, k, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append result: %w", err)
	}
	return nil
}

// FindByEmail loads every indexed entry that has not expired yet, oldest
// first. Index members whose entry has expired are pruned.
func (s *Store) FindByEmail(ctx context.Context, email string) ([]domain.ResultLogEntry, error) {
	idx := indexKey(email)
	ids, err := s.client.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load results: %w", err)
	}

	out := make([]domain.ResultLogEntry, 0, len(vals))
	var stale []interface{}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var entry domain.ResultLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decoding result %s: %w", ids[i], err)
		}
		out = append(out, entry)
	}
	if len(stale) > 0 {
		// Best effort; a failed prune is retried on the next read.
		s.client.ZRem(ctx, idx, stale...)
	}
	return out, nil
}
