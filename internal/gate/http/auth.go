package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/service"
	"github.com/tessara-ic/authgate/pkg/httpx"
	"github.com/tessara-ic/authgate/pkg/slogx"
)

// AuthHandler handles the two-step login flow.
type AuthHandler struct {
	Auth       *service.AuthService
	SessionTTL time.Duration
	Production bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ChallengeToken string `json:"challengeToken"`
}

type verifyRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
}

type verifyResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Begin login (step one)
//	@Description	Validates the primary credential and returns a short-lived challenge token for the verification step.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string			true	"CSRF token from /csrf-token"
//	@Param			request			body		loginRequest	true	"Credentials"
//	@Success		200				{object}	loginResponse	"Challenge token"
//	@Failure		400				{object}	httpx.ErrorBody	"Malformed request"
//	@Failure		401				{object}	httpx.ErrorBody	"Invalid credentials"
//	@Failure		403				{object}	httpx.ErrorBody	"CSRF token missing or invalid"
//	@Failure		429				{object}	httpx.ErrorBody	"Too many attempts"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	challenge, err := h.Auth.BeginLogin(ctx, req.Email, req.Password, clientIP(r))
	if err != nil {
		h.writeLoginError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{ChallengeToken: challenge})
}

// HandleVerify handles POST /v1/auth/login/verify
//
//	@Summary		Complete login (step two)
//	@Description	Verifies the TOTP code against the challenge, creates a session, and sets the auth cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			X-CSRF-Token	header		string			true	"CSRF token from /csrf-token"
//	@Param			request			body		verifyRequest	true	"Challenge token and TOTP code"
//	@Success		200				{object}	verifyResponse	"Authenticated user"
//	@Failure		400				{object}	httpx.ErrorBody	"Malformed request"
//	@Failure		401				{object}	httpx.ErrorBody	"Invalid or expired challenge"
//	@Failure		403				{object}	httpx.ErrorBody	"CSRF token missing or invalid"
//	@Failure		429				{object}	httpx.ErrorBody	"Too many attempts"
//	@Router			/v1/auth/login/verify [post].
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "challengeToken and code are required")
		return
	}

	result, err := h.Auth.CompleteLogin(ctx, req.ChallengeToken, req.Code, clientIP(r))
	if err != nil {
		h.writeLoginError(w, log, err)
		return
	}

	setAuthCookie(w, result.Token, h.SessionTTL, h.Production)
	httpx.WriteJSON(w, http.StatusOK, verifyResponse{
		UserID: result.User.ID,
		Email:  result.User.Email,
		Role:   result.User.Role,
	})
}

// writeLoginError maps service errors to responses without leaking which
// part of the credential failed.
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, log *slog.Logger, err error) {
	var rle *service.RateLimitedError
	switch {
	case errors.As(err, &rle):
		retryAfter := int(rle.Result.RetryAfter(time.Now()).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		httpx.WriteJSON(w, http.StatusTooManyRequests, httpx.ErrorBody{
			Error:      "rate_limited",
			Message:    "Too many attempts, try again later",
			RetryAfter: retryAfter,
		})
	case errors.Is(err, service.ErrBadCredentials),
		errors.Is(err, service.ErrBadSecondFactor),
		errors.Is(err, service.ErrChallengeExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
	default:
		log.Error("login failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}

// clientIP extracts the originating address, honouring proxy headers.
func clientIP(r *http.Request) string {
	return httpx.IPKeyExtractor(r)
}
