// Package http exposes the gateway's HTTP surface: the request guard that
// fronts every protected route, the login and session endpoints, and the
// health probes.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/identity"
	"github.com/tessara-ic/authgate/internal/gate/obs"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/csrf"
	"github.com/tessara-ic/authgate/pkg/httpx"
	"github.com/tessara-ic/authgate/pkg/idx"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
	"github.com/tessara-ic/authgate/pkg/slogx"
	"github.com/tessara-ic/authgate/pkg/tokenval"
)

// AuthCookieName carries the signed admin token.
const AuthCookieName = "authgate_token"

// verifyTimeout bounds the identity-provider verification call so a hung
// provider cannot stall every protected request. Verification fails closed
// on timeout.
const verifyTimeout = 5 * time.Second

type ctxKey int

const principalKey ctxKey = iota

// PrincipalFromContext returns the authenticated principal set by the
// guard, if any.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// GuardedHandler is a protected route handler. A returned error becomes a
// 500 with a correlation id; everything else is the handler's job.
type GuardedHandler func(w http.ResponseWriter, r *http.Request, p domain.Principal) error

// Guard composes structural token validation, identity-provider
// verification, revocation and session checks, rate limiting, and CSRF
// verification in front of protected handlers.
type Guard struct {
	Validator   *tokenval.Validator
	Provider    identity.Provider
	Sessions    store.Sessions
	Revocations store.Revocations
	Limiter     *ratelimit.Limiter
	CSRF        *csrf.Service
}

// RequireAuth wraps a handler so only requests with a verified, unrevoked
// token reach it.
func (g *Guard) RequireAuth(h GuardedHandler) http.Handler {
	return g.wrap(h, "")
}

// RequireAuthWithRateLimit additionally books the request against the
// sliding window for the given action, keyed by client address and
// authenticated user.
func (g *Guard) RequireAuthWithRateLimit(h GuardedHandler, action ratelimit.Action) http.Handler {
	return g.wrap(h, action)
}

// RequireRole narrows a guarded handler to principals holding the role.
func RequireRole(role string, h GuardedHandler) GuardedHandler {
	return func(w http.ResponseWriter, r *http.Request, p domain.Principal) error {
		if p.Role != role {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
			return nil
		}
		return h(w, r, p)
	}
}

// RequireCSRF verifies the X-CSRF-Token header before the handler runs.
// It sits inside the auth check, so an unauthenticated request is a 401
// and an authenticated one without a valid CSRF token is a 403.
func (g *Guard) RequireCSRF(h GuardedHandler) GuardedHandler {
	return func(w http.ResponseWriter, r *http.Request, p domain.Principal) error {
		token := r.Header.Get("X-CSRF-Token")
		if token == "" || !g.CSRF.Verify(token) {
			httpx.WriteError(w, http.StatusForbidden, "invalid_csrf_token", "CSRF token missing or invalid")
			return nil
		}
		return h(w, r, p)
	}
}

func (g *Guard) wrap(h GuardedHandler, action ratelimit.Action) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := slogx.FromContext(ctx)

		token := extractToken(r)
		if token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		// Cheap structural pre-filter before any cryptography.
		if res := g.Validator.Validate(token); !res.Valid {
			l.Warn("structurally invalid token",
				slog.String("reason", res.Reason),
				slog.String("token", slogx.TruncateToken(token)),
			)
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
		claims, err := g.Provider.VerifyToken(vctx, token)
		cancel()
		if err != nil {
			if errors.Is(err, identity.ErrUnavailable) {
				l.Error("identity provider unavailable", slog.Any("error", err))
				httpx.WriteError(w, http.StatusServiceUnavailable, "service_unavailable", "Authentication service unavailable")
				return
			}
			l.Warn("token verification failed", slog.Any("error", err))
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		revoked, err := g.Revocations.IsRevoked(ctx, claims.Subject, claims.IssuedAt)
		if err != nil {
			g.serverError(w, l, "revocation check", err)
			return
		}
		if revoked {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Token revoked")
			return
		}

		if claims.SessionID != "" {
			session, err := g.Sessions.Get(ctx, claims.SessionID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				g.serverError(w, l, "session lookup", err)
				return
			}
			if err != nil || !session.Active(time.Now()) {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Session expired")
				return
			}
		}

		if action != "" {
			if res := g.Limiter.Check(clientIP(r)+":"+claims.Subject, action); !res.Allowed {
				obs.RecordRateLimitBlock(string(action))
				retryAfter := int(res.RetryAfter(time.Now()).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httpx.WriteJSON(w, http.StatusTooManyRequests, httpx.ErrorBody{
					Error:      "rate_limited",
					Message:    "Too many requests",
					RetryAfter: retryAfter,
				})
				return
			}
		}

		principal := domain.Principal{
			UID:       claims.Subject,
			Email:     claims.Email,
			Role:      claims.Role,
			SessionID: claims.SessionID,
		}

		r = r.WithContext(context.WithValue(ctx, principalKey, principal))

		defer func() {
			if rec := recover(); rec != nil {
				g.serverError(w, l, "handler panic", errors.New("panic recovered"))
			}
		}()

		if err := h(w, r, principal); err != nil {
			g.serverError(w, l, "handler", err)
		}
	})
}

// serverError logs the internal cause with a correlation id and returns
// only the id to the client.
func (g *Guard) serverError(w http.ResponseWriter, l *slog.Logger, op string, err error) {
	correlationID := idx.New().String()
	l.Error("internal error",
		slog.String("op", op),
		slog.String("correlation_id", correlationID),
		slog.Any("error", err),
	)
	httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{
		Error:         "internal_error",
		Message:       "An internal error occurred",
		CorrelationID: correlationID,
	})
}

// extractToken prefers the auth cookie and falls back to a bearer header
// for API clients.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
