package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/identity"
	"github.com/tessara-ic/authgate/internal/gate/obs"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/csrf"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
	"github.com/tessara-ic/authgate/pkg/slogx"
)

const checkOK = "ok"

// ConfigCheck reports whether required security configuration is present.
// Missing entries in production push the service into lockdown.
type ConfigCheck struct {
	Missing    []string
	Production bool
}

// HealthService evaluates dependency health and maintains the service-wide
// availability state. Lockdown is not permanent: it clears as soon as a
// later evaluation passes, so a transient credential error does not take
// the gateway down for the rest of the process lifetime.
type HealthService struct {
	Store       store.Store
	Sessions    store.Sessions
	Revocations store.Revocations
	Provider    identity.Provider
	CSRF        *csrf.Service
	Limiter     *ratelimit.Limiter
	Config      ConfigCheck
	Version     string

	startedAt time.Time

	mu    sync.RWMutex
	state domain.Availability
}

func NewHealthService(
	st store.Store,
	sessions store.Sessions,
	revocations store.Revocations,
	provider identity.Provider,
	csrfSvc *csrf.Service,
	limiter *ratelimit.Limiter,
	config ConfigCheck,
	version string,
) *HealthService {
	return &HealthService{
		Store:       st,
		Sessions:    sessions,
		Revocations: revocations,
		Provider:    provider,
		CSRF:        csrfSvc,
		Limiter:     limiter,
		Config:      config,
		Version:     version,
		startedAt:   time.Now(),
		state:       domain.Available,
	}
}

// State returns the current availability without re-evaluating.
func (s *HealthService) State() domain.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Evaluate runs every dependency check, updates the availability state,
// and returns the full report.
func (s *HealthService) Evaluate(ctx context.Context) domain.HealthReport {
	l := slogx.FromContext(ctx)

	checks := domain.HealthChecks{
		Database: checkOK,
		Provider: checkOK,
		CSRF:     checkOK,
		Config:   checkOK,
	}
	degraded := false
	lockdown := false

	if err := s.Store.Ping(ctx); err != nil {
		checks.Database = err.Error()
		degraded = true
	}
	if err := s.Provider.Healthy(ctx); err != nil {
		checks.Provider = err.Error()
		degraded = true
	}
	if err := s.CSRF.Health(); err != nil {
		checks.CSRF = err.Error()
		degraded = true
		if s.Config.Production {
			lockdown = true
		}
	}
	if len(s.Config.Missing) > 0 {
		checks.Config = "missing: " + strings.Join(s.Config.Missing, ", ")
		degraded = true
		if s.Config.Production {
			lockdown = true
		}
	}

	state := domain.Available
	switch {
	case lockdown:
		state = domain.Lockdown
	case degraded:
		state = domain.Degraded
	}

	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		l.Warn("availability state changed",
			slog.String("from", string(prev)),
			slog.String("to", string(state)),
		)
	}
	obs.SetAvailability(string(state))

	activeSessions, err := s.Sessions.ActiveCount(ctx)
	if err != nil {
		l.Error("count active sessions", slog.Any("error", err))
	}
	obs.SetActiveSessions(activeSessions)

	revoked, err := s.Revocations.Count(ctx)
	if err != nil {
		l.Error("count revocations", slog.Any("error", err))
	}

	return domain.HealthReport{
		Status:          state,
		Uptime:          time.Since(s.startedAt).Round(time.Second).String(),
		Version:         s.Version,
		Checks:          checks,
		ActiveSessions:  activeSessions,
		RevokedTokens:   revoked,
		TrackedRateKeys: s.Limiter.TrackedKeys(),
	}
}
