// Package memory provides the default in-process implementations of the
// session store and token revocation registry. State lives only for the
// process lifetime; a restart clears everything and forces users to log in
// again.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/idx"
)

// Sessions is an in-memory store.Sessions implementation.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionRecord
	now      func() time.Time
}

// Option tweaks construction.
type Option func(*Sessions)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sessions) { s.now = now }
}

func NewSessions(opts ...Option) *Sessions {
	s := &Sessions{
		sessions: make(map[string]domain.SessionRecord),
		now:      time.Now,
	}
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

	s.mu.Lock()
	s.sessions[rec.ID] = rec
	s.mu.Unlock()

	return rec, nil
}

func (s *Sessions) Get(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return domain.SessionRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Sessions) RevokeUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, rec := range s.sessions {
		if rec.UserID == userID && !rec.Revoked {
			rec.Revoked = true
			s.sessions[id] = rec
			count++
		}
	}
	return count, nil
}

func (s *Sessions) DeleteExpired(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, rec := range s.sessions {
		if !now.Before(rec.ExpiresAt) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

func (s *Sessions) ActiveCount(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.sessions {
		if rec.Active(now) {
			count++
		}
	}
	return count, nil
}
