package http

import (
	"log/slog"
	"net/http"

	"github.com/tessara-ic/authgate/pkg/csrf"
	"github.com/tessara-ic/authgate/pkg/httpx"
	"github.com/tessara-ic/authgate/pkg/slogx"
)

type csrfTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRFTokenHandler handles GET /v1/auth/csrf-token
//
//	@Summary		Mint a CSRF token
//	@Description	Returns a stateless HMAC-signed token the client must echo in X-CSRF-Token on state-changing requests.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	csrfTokenResponse	"CSRF token"
//	@Failure		500	{object}	httpx.ErrorBody		"Service misconfigured"
//	@Router			/v1/auth/csrf-token [get].
func CSRFTokenHandler(svc *csrf.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := svc.Issue()
		if err != nil {
			slogx.FromContext(r.Context()).Error("csrf issue failed", slog.Any("error", err))
			httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "Could not issue CSRF token")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, csrfTokenResponse{CSRFToken: token})
	}
}

// RequireCSRFHeader fronts unauthenticated state-changing routes with the
// same X-CSRF-Token check that Guard.RequireCSRF applies behind auth. The
// login endpoints need it because no session exists yet.
func RequireCSRFHeader(svc *csrf.Service) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-CSRF-Token")
			if token == "" || !svc.Verify(token) {
				httpx.WriteError(w, http.StatusForbidden, "invalid_csrf_token", "CSRF token missing or invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
