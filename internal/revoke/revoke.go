package revoke

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisList is a Redis-backed list of revoked bearer tokens. Entries expire
// with the token so the list never grows past the live token set.
type RedisList struct {
	client *redis.Client
	prefix string
}

// NewRedisList returns a revocation list. A nil client disables it: revoking
// is a no-op and nothing is reported as revoked.
func NewRedisList(c *redis.Client, prefix string) *RedisList {
	if prefix == "" {
		prefix = "revoked:access:"
	}
	return &RedisList{client: c, prefix: prefix}
}

// Revoke stores the token in the list with TTL.
func (l *RedisList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if l.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return l.client.Set(ctx, l.prefix+token, "1", ttl).Err()
}

// IsRevoked returns true when the token exists in the list.
func (l *RedisList) IsRevoked(ctx context.Context, token string) (bool, error) {
	if l.client == nil {
		return false, nil
	}
	exists, err := l.client.Exists(ctx, l.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
