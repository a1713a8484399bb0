package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "authgate:revoked:"

// Revocations is a Redis-backed store.Revocations. Each entry records the
// instant a user's tokens were revoked; Redis TTL prunes entries once no
// verifiable token could still predate them.
type Revocations struct {
	client *redis.Client
	now    func() time.Time

	// maxTokenLifetime bounds how long an entry has to be kept. Tokens
	// older than this fail verification on their own.
	maxTokenLifetime time.Duration
}

type RevocationsOption func(*Revocations)

func WithRevocationsClock(now func() time.Time) RevocationsOption {
	return func(r *Revocations) { r.now = now }
}

func NewRevocations(client *redis.Client, maxTokenLifetime time.Duration, opts ...RevocationsOption) *Revocations {
	r := &Revocations{
		client:           client,
		now:              time.Now,
		maxTokenLifetime: maxTokenLifetime,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Revocations) Revoke(ctx context.Context, userID string) error {
	cutoff := r.now().Format(time.RFC3339Nano)
	return r.client.Set(ctx, revokedKeyPrefix+userID, cutoff, r.maxTokenLifetime).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	val, err := r.client.Get(ctx, revokedKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cutoff, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// An unreadable entry still means the user was revoked at some
		// point within the retention window. Fail closed.
		return true, nil
	}
	return !issuedAt.After(cutoff), nil
}

func (r *Revocations) Count(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, revokedKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// DeleteStale is a no-op for the Redis driver. Entries carry a TTL equal to
// the max token lifetime, so Redis prunes them itself.
func (r *Revocations) DeleteStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}
