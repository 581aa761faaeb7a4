package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys that were already acted on. The outbox
// handlers key it by subscriber and event id; the HTTP middleware keys it by
// route and the client's Idempotency-Key header.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. It reports false when the key is
	// already claimed and still live.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Forget releases key early so a failed operation can be retried
	Forget(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig sets how long keys live and whether checks run at all
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps keys for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
