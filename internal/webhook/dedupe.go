package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/email-validator/internal/pkg/distlock"
	"github.com/ignite/email-validator/internal/pkg/logger"
)

// DefaultDedupeTTL is how long a processed event ID is remembered.
const DefaultDedupeTTL = 10 * time.Minute

// Deduper suppresses re-processing of redelivered events.
type Deduper interface {
	// Claim reports whether the caller should process eventID. When it
	// returns true, release must be called if processing fails so a
	// redelivery can retry.
	Claim(ctx context.Context, eventID string) (ok bool, release func())
}

// RedisDeduper claims event IDs with a Redis SET NX lock that is left to
// expire on success.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper returns a deduper remembering event IDs for ttl.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Claim is best effort: a Redis failure lets the event through.
func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, func()) {
	noop := func() {}
	if eventID == "" {
		return true, noop
	}

	var lock distlock.DistLock = distlock.NewRedisLock(d.client, "hubspot:event:"+eventID, d.ttl)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		logger.Warn("event dedupe unavailable", "event_id", eventID, "error", err)
		return true, noop
	}
	if !ok {
		return false, noop
	}
	return true, func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil {
			logger.Warn("event dedupe release failed", "event_id", eventID, "error", err)
		}
	}
}
