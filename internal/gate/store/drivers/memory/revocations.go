package memory

import (
	"context"
	"sync"
	"time"
)

// Revocations is an in-memory store.Revocations implementation. One entry
// per user; re-revoking moves the cutoff forward.
type Revocations struct {
	mu        sync.RWMutex
	revokedAt map[string]time.Time
	now       func() time.Time
}

// RevocationsOption tweaks construction.
type RevocationsOption func(*Revocations)

// WithRevocationsClock injects a time source for tests.
func WithRevocationsClock(now func() time.Time) RevocationsOption {
	return func(r *Revocations) { r.now = now }
}

func NewRevocations(opts ...RevocationsOption) *Revocations {
	r := &Revocations{
		revokedAt: make(map[string]time.Time),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Revocations) Revoke(ctx context.Context, userID string) error {
	r.mu.Lock()
	r.revokedAt[userID] = r.now()
	r.mu.Unlock()
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	r.mu.RLock()
	cutoff, ok := r.revokedAt[userID]
	r.mu.RUnlock()

	if !ok {
		return false, nil
	}
	// Issued at or before the cutoff: dead. Only tokens minted by a fresh
	// login after the revocation pass.
	return !issuedAt.After(cutoff), nil
}

func (r *Revocations) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revokedAt), nil
}

func (r *Revocations) DeleteStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for userID, at := range r.revokedAt {
		if at.Before(cutoff) {
			delete(r.revokedAt, userID)
			count++
		}
	}
	return count, nil
}
