// Package redisstore provides Redis-backed implementations of the session
// store and token revocation registry, for deployments that run more than
// one gateway instance and need shared state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/idx"
)

const (
	sessionKeyPrefix = "authgate:session:"
	userSessionsKey  = "authgate:user_sessions:"
	sessionIndexKey  = "authgate:sessions"
)

// Sessions is a Redis-backed store.Sessions. Session records are stored as
// JSON under a per-session key with a TTL slightly past the session expiry,
// plus a per-user set so RevokeUser can find all of a user's sessions.
type Sessions struct {
	client *redis.Client
	now    func() time.Time
}

type SessionsOption func(*Sessions)

func WithSessionsClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(client *redis.Client, opts ...SessionsOption) *Sessions {
	s := &Sessions{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sessions) Create(ctx context.Context, userID string, ttl time.Duration) (domain.SessionRecord, error) {
	now := s.now()
	rec := domain.SessionRecord{
		ID:        idx.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	// Keep the record around a little past expiry so Get can still report
	// "expired" instead of "not found" for recently lapsed sessions.
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+rec.ID, payload, ttl+time.Hour)
	pipe.SAdd(ctx, userSessionsKey+userID, rec.ID)
	pipe.Expire(ctx, userSessionsKey+userID, ttl+time.Hour)
	pipe.SAdd(ctx, sessionIndexKey, rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.SessionRecord{}, err
	}

	return rec, nil
}

func (s *Sessions) Get(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionRecord{}, store.ErrNotFound
	}
	if err != nil {
		return domain.SessionRecord{}, err
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.SessionRecord{}, err
	}
	return rec, nil
}

func (s *Sessions) RevokeUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.SMembers(ctx, userSessionsKey+userID).Result()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		if rec.Revoked {
			continue
		}

		rec.Revoked = true
		payload, err := json.Marshal(rec)
		if err != nil {
			return count, err
		}

		remaining := s.client.TTL(ctx, sessionKeyPrefix+id).Val()
		if remaining <= 0 {
			remaining = time.Hour
		}
		if err := s.client.Set(ctx, sessionKeyPrefix+id, payload, remaining).Err(); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// DeleteExpired removes index entries for sessions whose keys Redis has
// already expired. Redis evicts the records themselves via TTL; this only
// keeps the index sets honest.
func (s *Sessions) DeleteExpired(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
		if err != nil {
			return count, err
		}
		if exists == 0 {
			if err := s.client.SRem(ctx, sessionIndexKey, id).Err(); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (s *Sessions) ActiveCount(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return 0, err
	}

	now := s.now()
	count := 0
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if rec.Active(now) {
			count++
		}
	}
	return count, nil
}
