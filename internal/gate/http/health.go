package http

import (
	"net/http"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/service"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/pkg/httpx"
)

// HealthHandler serves the admin health report.
type HealthHandler struct {
	Health *service.HealthService
}

// Handle handles GET /v1/admin/health
//
//	@Summary		Admin health report
//	@Description	Evaluates identity-provider connectivity, database, CSRF service, and configuration, and reports session/revocation counts.
//	@Tags			Admin
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	domain.HealthReport	"Full health report"
//	@Failure		401	{object}	httpx.ErrorBody		"Not authenticated"
//	@Failure		403	{object}	httpx.ErrorBody		"Not an admin"
//	@Router			/v1/admin/health [get].
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request, _ domain.Principal) error {
	report := h.Health.Evaluate(r.Context())

	code := http.StatusOK
	if report.Status == domain.Lockdown {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, report)
	return nil
}

type probeResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 while the process is running.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	probeResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, probeResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Returns 200 once the database answers pings; 503 otherwise.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	probeResponse	"Ready"
//	@Failure		503	{object}	httpx.ErrorBody	"Dependency not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "Database unavailable")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, probeResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
