package http

import (
	"net/http"

	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/service"
	"github.com/tessara-ic/authgate/pkg/httpx"
)

// SessionHandler handles logout and forced session invalidation.
type SessionHandler struct {
	Auth       *service.AuthService
	Production bool
}

type invalidateResponse struct {
	RevokedSessions int `json:"revokedSessions"`
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the user's tokens and sessions and clears the auth cookie.
//	@Tags			Auth
//	@Security		CookieAuth
//	@Produce		json
//	@Success		204	"Logged out"
//	@Failure		401	{object}	httpx.ErrorBody	"Not authenticated"
//	@Router			/v1/auth/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request, p domain.Principal) error {
	if err := h.Auth.Logout(r.Context(), p.UID); err != nil {
		return err
	}

	clearAuthCookie(w, h.Production)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// HandleInvalidate handles POST /v1/auth/invalidate-session
//
//	@Summary		Invalidate all sessions
//	@Description	Force-revokes every session and token for the current user and reports how many sessions were affected.
//	@Tags			Auth
//	@Security		CookieAuth
//	@Produce		json
//	@Success		200	{object}	invalidateResponse	"Revoked session count"
//	@Failure		401	{object}	httpx.ErrorBody		"Not authenticated"
//	@Router			/v1/auth/invalidate-session [post].
func (h *SessionHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request, p domain.Principal) error {
	count, err := h.Auth.InvalidateSessions(r.Context(), p.UID)
	if err != nil {
		return err
	}

	clearAuthCookie(w, h.Production)
	httpx.WriteJSON(w, http.StatusOK, invalidateResponse{RevokedSessions: count})
	return nil
}
