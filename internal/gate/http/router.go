package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/obs"
	"github.com/tessara-ic/authgate/internal/gate/service"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/csrf"
	"github.com/tessara-ic/authgate/pkg/httpx"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
	"github.com/tessara-ic/authgate/pkg/slogx"

	_ "github.com/tessara-ic/authgate/api/authgate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	guard        *Guard
	csrfService  *csrf.Service
	store        store.Store
	buildVersion string
	startTime    time.Time
	production   bool
	sessionTTL   time.Duration
	logger       *slog.Logger

	AuthService   *service.AuthService
	HealthService *service.HealthService
}

func NewRouter(
	guard *Guard,
	csrfService *csrf.Service,
	st store.Store,
	buildVersion string,
	production bool,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		guard:        guard,
		csrfService:  csrfService,
		store:        st,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		production:   production,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}

	// Global middleware chain: logging first, then metrics, then the
	// uniform security headers.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
		httpx.SecurityHeaders(production),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/metrics", obs.Handler())
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tessara AuthGate API
//	@version		0.1.0
//	@description	Authentication gateway for the Tessara marketing CMS admin area.
//	@description
//	@description	Two-step login (password + TOTP) issues an RS256-signed token in an
//	@description	HttpOnly cookie; state-changing requests additionally require a
//	@description	stateless HMAC CSRF token in the X-CSRF-Token header.
//
//	@contact.name				Tessara Platform Team
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							header
//	@name						Cookie
//	@description				Session cookie set by /v1/auth/login/verify.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	authHandler := &AuthHandler{
		Auth:       r.AuthService,
		SessionTTL: r.sessionTTL,
		Production: r.production,
	}

	// GET /csrf-token - lenient edge limit (every form load fetches one)
	r.Mux.Handle("GET /v1/auth/csrf-token",
		httpx.Chain(CSRFTokenHandler(r.csrfService),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /login - strict edge limit and a token from /csrf-token; the
	// sliding window inside the service does the per-email accounting.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(authHandler.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
			RequireCSRFHeader(r.csrfService),
		),
	)

	// POST /login/verify - strict edge limit (TOTP brute-force surface)
	r.Mux.Handle("POST /v1/auth/login/verify",
		httpx.Chain(http.HandlerFunc(authHandler.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
			RequireCSRFHeader(r.csrfService),
		),
	)

	// POST /rate-limit-check - lenient, unauthenticated pre-flight query
	rateLimitCheck := &RateLimitCheckHandler{Auth: r.AuthService}
	r.Mux.Handle("POST /v1/auth/rate-limit-check",
		httpx.Chain(http.HandlerFunc(rateLimitCheck.Handle),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{Auth: r.AuthService, Production: r.production}

	// Both endpoints change state, so they sit behind auth + CSRF.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(r.guard.RequireAuth(r.guard.RequireCSRF(h.HandleLogout)),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/invalidate-session",
		httpx.Chain(r.guard.RequireAuth(r.guard.RequireCSRF(h.HandleInvalidate)),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &HealthHandler{Health: r.HealthService}

	// Admin-only, with the admin_action sliding window booked per user.
	r.Mux.Handle("GET /v1/admin/health",
		r.guard.RequireAuthWithRateLimit(
			RequireRole(domain.RoleAdmin, h.Handle),
			ratelimit.ActionAdminAction,
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
