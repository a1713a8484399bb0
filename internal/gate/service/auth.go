// Package service holds the gateway's business logic: the two-step login
// flow, session and token revocation, health evaluation, and the
// background housekeeping worker.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/identity"
	"github.com/tessara-ic/authgate/internal/gate/obs"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/cryptox"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
	"github.com/tessara-ic/authgate/pkg/slogx"
)

const (
	// challengeTTL bounds how long a user has between password and TOTP
	// steps before the challenge lapses.
	challengeTTL = 5 * time.Minute

	// maxChallengeAttempts caps TOTP guesses per challenge.
	maxChallengeAttempts = 5
)

var (
	// ErrBadCredentials covers unknown email and wrong password alike so
	// responses never reveal which one it was.
	ErrBadCredentials = errors.New("service: invalid credentials")

	ErrBadSecondFactor  = errors.New("service: invalid verification code")
	ErrChallengeExpired = errors.New("service: login challenge expired")
)

// RateLimitedError reports a blocked attempt along with the window state
// so handlers can populate Retry-After.
type RateLimitedError struct {
	Result ratelimit.Result
	Action ratelimit.Action
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("service: rate limited on %s", e.Action)
}

// loginChallenge is the server side of a pending two-step login. Keyed by
// the fingerprint of the opaque token handed to the client; the token
// itself is never stored.
type loginChallenge struct {
	userID    string
	attempts  int
	expiresAt time.Time
}

// LoginResult is what a completed login hands back to the HTTP layer.
type LoginResult struct {
	Token   string
	Session domain.SessionRecord
	User    domain.User
}

type AuthService struct {
	Users       store.Users
	Sessions    store.Sessions
	Revocations store.Revocations
	Provider    identity.Provider
	Limiter     *ratelimit.Limiter

	SessionTTL time.Duration
	TokenTTL   time.Duration

	mu         sync.Mutex
	challenges map[string]*loginChallenge
	now        func() time.Time
}

type AuthOption func(*AuthService)

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(
	users store.Users,
	sessions store.Sessions,
	revocations store.Revocations,
	provider identity.Provider,
	limiter *ratelimit.Limiter,
	sessionTTL, tokenTTL time.Duration,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		Users:       users,
		Sessions:    sessions,
		Revocations: revocations,
		Provider:    provider,
		Limiter:     limiter,
		SessionTTL:  sessionTTL,
		TokenTTL:    tokenTTL,
		challenges:  make(map[string]*loginChallenge),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginLogin is step one: verify the primary credential and hand back an
// opaque challenge token for the TOTP step. The remoteIP+email pair is the
// rate-limit identifier so one address cannot burn through many accounts.
func (s *AuthService) BeginLogin(ctx context.Context, email, password, remoteIP string) (string, error) {
	l := slogx.FromContext(ctx)
	limitKey := remoteIP + ":" + email

	// Past failures lock the pair out under the stricter failure window
	// before the plain attempt window is even consulted. Peek, not Check:
	// only actual failures are booked there.
	if res := s.Limiter.Peek(limitKey, ratelimit.ActionAuthenticationFailed); !res.Allowed {
		obs.RecordLogin("rate_limited")
		obs.RecordRateLimitBlock(string(ratelimit.ActionAuthenticationFailed))
		return "", &RateLimitedError{Result: res, Action: ratelimit.ActionAuthenticationFailed}
	}

	if res := s.Limiter.Check(limitKey, ratelimit.ActionAuthentication); !res.Allowed {
		obs.RecordLogin("rate_limited")
		obs.RecordRateLimitBlock(string(ratelimit.ActionAuthentication))
		return "", &RateLimitedError{Result: res, Action: ratelimit.ActionAuthentication}
	}

	user, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordAuthFailure(limitKey)
			obs.RecordLogin("bad_credentials")
			l.Warn("login attempt for unknown email", slog.String("email", slogx.MaskEmail(email)))
			return "", ErrBadCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			s.recordAuthFailure(limitKey)
			obs.RecordLogin("bad_credentials")
			l.Warn("password mismatch", slog.String("user_id", user.ID))
			return "", ErrBadCredentials
		}
		return "", fmt.Errorf("verify password: %w", err)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}

	s.mu.Lock()
	s.challenges[cryptox.FingerprintToken(token)] = &loginChallenge{
		userID:    user.ID,
		expiresAt: s.now().Add(challengeTTL),
	}
	s.mu.Unlock()

	l.Info("login challenge issued", slog.String("user_id", user.ID))
	return token, nil
}

// CompleteLogin is step two: verify the TOTP code against the challenge
// and mint a session plus signed token.
func (s *AuthService) CompleteLogin(ctx context.Context, challengeToken, code, remoteIP string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	if res := s.Limiter.Check(remoteIP, ratelimit.ActionAuthentication); !res.Allowed {
		obs.RecordLogin("rate_limited")
		obs.RecordRateLimitBlock(string(ratelimit.ActionAuthentication))
		return LoginResult{}, &RateLimitedError{Result: res, Action: ratelimit.ActionAuthentication}
	}

	fingerprint := cryptox.FingerprintToken(challengeToken)

	s.mu.Lock()
	ch, ok := s.challenges[fingerprint]
	if ok {
		if s.now().After(ch.expiresAt) {
			delete(s.challenges, fingerprint)
			ok = false
		} else {
			ch.attempts++
			if ch.attempts > maxChallengeAttempts {
				delete(s.challenges, fingerprint)
				ok = false
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		obs.RecordLogin("bad_totp")
		return LoginResult{}, ErrChallengeExpired
	}

	user, err := s.Users.GetUserByID(ctx, ch.userID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	failKey := remoteIP + ":" + user.Email
	if res := s.Limiter.Peek(failKey, ratelimit.ActionAuthenticationFailed); !res.Allowed {
		obs.RecordLogin("rate_limited")
		obs.RecordRateLimitBlock(string(ratelimit.ActionAuthenticationFailed))
		return LoginResult{}, &RateLimitedError{Result: res, Action: ratelimit.ActionAuthenticationFailed}
	}

	if !totp.Validate(code, user.TOTPSecret) {
		s.recordAuthFailure(failKey)
		obs.RecordLogin("bad_totp")
		l.Warn("second factor mismatch", slog.String("user_id", user.ID))
		return LoginResult{}, ErrBadSecondFactor
	}

	s.mu.Lock()
	delete(s.challenges, fingerprint)
	s.mu.Unlock()

	session, err := s.Sessions.Create(ctx, user.ID, s.SessionTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	token, err := s.Provider.IssueToken(ctx, identity.Claims{
		Subject:   user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.ID,
		ExpiresAt: s.now().Add(s.TokenTTL),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	obs.RecordLogin("success")
	l.Info("login completed",
		slog.String("user_id", user.ID),
		slog.String("session_id", session.ID),
	)
	return LoginResult{Token: token, Session: session, User: user}, nil
}

// Logout revokes the user's tokens and every active session. Tokens minted
// before this instant fail revocation checks even while cryptographically
// valid.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	l := slogx.FromContext(ctx)

	if err := s.Revocations.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	count, err := s.Sessions.RevokeUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	l.Info("user logged out", slog.String("user_id", userID), slog.Int("sessions_revoked", count))
	return nil
}

// InvalidateSessions force-revokes every session and token for the user
// and reports how many sessions were affected.
func (s *AuthService) InvalidateSessions(ctx context.Context, userID string) (int, error) {
	l := slogx.FromContext(ctx)

	if err := s.Revocations.Revoke(ctx, userID); err != nil {
		return 0, fmt.Errorf("revoke tokens: %w", err)
	}
	count, err := s.Sessions.RevokeUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	l.Info("sessions invalidated", slog.String("user_id", userID), slog.Int("revoked", count))
	return count, nil
}

// RateLimitStatus answers the pre-flight rate-limit query without
// recording an attempt.
func (s *AuthService) RateLimitStatus(identifier string, action ratelimit.Action) ratelimit.Result {
	return s.Limiter.Peek(identifier, action)
}

// SweepChallenges drops expired login challenges. Called by housekeeping.
func (s *AuthService) SweepChallenges() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for fp, ch := range s.challenges {
		if now.After(ch.expiresAt) {
			delete(s.challenges, fp)
			count++
		}
	}
	return count
}

// recordAuthFailure books a failed attempt against the stricter failure
// window so repeated failures lock faster than plain attempts.
func (s *AuthService) recordAuthFailure(key string) {
	s.Limiter.Check(key, ratelimit.ActionAuthenticationFailed)
}
