package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/service"
	"github.com/tessara-ic/authgate/pkg/httpx"
	"github.com/tessara-ic/authgate/pkg/ratelimit"
)

// RateLimitCheckHandler answers pre-flight rate-limit queries so the admin
// UI can warn before a submit would be blocked.
type RateLimitCheckHandler struct {
	Auth *service.AuthService
}

type rateLimitCheckRequest struct {
	Email      string `json:"email"`
	ActionType string `json:"actionType"`
}

type rateLimitCheckResponse struct {
	Allowed    bool  `json:"allowed"`
	Remaining  int   `json:"remaining"`
	Limit      int   `json:"limit"`
	Reset      int64 `json:"reset"`
	RetryAfter int   `json:"retryAfter,omitempty"`
}

// Handle handles POST /v1/auth/rate-limit-check
//
//	@Summary		Pre-flight rate-limit status
//	@Description	Reports the current window state for an email and action type without recording an attempt.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		rateLimitCheckRequest	true	"Identifier and action"
//	@Success		200		{object}	rateLimitCheckResponse	"Window state"
//	@Failure		400		{object}	httpx.ErrorBody			"Malformed request"
//	@Router			/v1/auth/rate-limit-check [post].
func (h *RateLimitCheckHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req rateLimitCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.ActionType == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "actionType is required")
		return
	}

	// The identifier mirrors what login uses so the answer matches what
	// an actual attempt would see.
	identifier := clientIP(r)
	if req.Email != "" {
		identifier += ":" + req.Email
	}

	res := h.Auth.RateLimitStatus(identifier, ratelimit.Action(req.ActionType))

	out := rateLimitCheckResponse{
		Allowed:   res.Allowed,
		Remaining: res.Remaining,
		Limit:     res.Limit,
		Reset:     res.Reset.Unix(),
	}
	if !res.Allowed {
		out.RetryAfter = int(res.RetryAfter(time.Now()).Seconds()) + 1
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
