package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
)

// HousekeepingService periodically prunes expired sessions, stale
// revocation entries, aged-out rate-limit windows, and abandoned login
// challenges. Running it on a timer bounds staleness regardless of
// traffic, instead of relying on health-endpoint polls to trigger
// cleanup.
type HousekeepingService struct {
	Sessions    store.Sessions
	Revocations store.Revocations
	Limiter     *ratelimit.Limiter
	Auth        *AuthService
	Logger      *slog.Logger
	Interval    time.Duration

	// RevocationRetention should be at least the max token lifetime;
	// older entries can no longer match a verifiable token.
	RevocationRetention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the worker. An interval of 0 or less
// defaults to 5 minutes.
func NewHousekeepingService(
	sessions store.Sessions,
	revocations store.Revocations,
	limiter *ratelimit.Limiter,
	auth *AuthService,
	logger *slog.Logger,
	interval, revocationRetention time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Sessions:            sessions,
		Revocations:         revocations,
		Limiter:             limiter,
		Auth:                auth,
		Logger:              logger,
		Interval:            interval,
		RevocationRetention: revocationRetention,
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut it
// down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep
// finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs each cleanup independently so one failure does not stop the
// others.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()

	if n, err := s.Sessions.DeleteExpired(ctx); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	} else if n > 0 {
		s.Logger.Debug("deleted expired sessions", "count", n)
	}

	if n, err := s.Revocations.DeleteStale(ctx, s.RevocationRetention); err != nil {
		s.Logger.Error("failed to prune revocation entries", "error", err)
	} else if n > 0 {
		s.Logger.Debug("pruned revocation entries", "count", n)
	}

	if n := s.Limiter.Sweep(); n > 0 {
		s.Logger.Debug("dropped aged-out rate windows", "count", n)
	}

	if s.Auth != nil {
		if n := s.Auth.SweepChallenges(); n > 0 {
			s.Logger.Debug("dropped expired login challenges", "count", n)
		}
	}
}
