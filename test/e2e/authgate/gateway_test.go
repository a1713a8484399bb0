package authgate_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbesAndMetrics(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	var live struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	resp := getJSON(t, baseURL+"/livez", &live)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	resp = getJSON(t, baseURL+"/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, baseURL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCSRFTokenMinting(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	resp := getJSON(t, baseURL+"/v1/auth/csrf-token", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body.CSRFToken)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	csrfToken := fetchCSRFToken(t, baseURL)

	var body struct {
		Error string `json:"error"`
	}
	resp := postJSONCSRF(t, baseURL+"/v1/auth/login", csrfToken, map[string]string{
		"email":    bootstrapEmail,
		"password": "definitely-wrong",
	}, &body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthorized", body.Error)
}

func TestLoginRequiresCSRF(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	var body struct {
		Error string `json:"error"`
	}
	resp := postJSON(t, baseURL+"/v1/auth/login", map[string]string{
		"email":    bootstrapEmail,
		"password": bootstrapPassword,
	}, &body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "invalid_csrf_token", body.Error)
}

func TestRepeatedFailuresTrip429(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	csrfToken := fetchCSRFToken(t, baseURL)

	// Three failures fill the failure window for the address+email pair;
	// the fourth must be blocked with a positive retryAfter.
	var last *http.Response
	var body struct {
		RetryAfter int `json:"retryAfter"`
	}
	for i := range 4 {
		if i < 3 {
			last = postJSONCSRF(t, baseURL+"/v1/auth/login", csrfToken, map[string]string{
				"email":    bootstrapEmail,
				"password": "definitely-wrong",
			}, nil)
			require.Equal(t, http.StatusUnauthorized, last.StatusCode)
			continue
		}
		last = postJSONCSRF(t, baseURL+"/v1/auth/login", csrfToken, map[string]string{
			"email":    bootstrapEmail,
			"password": "definitely-wrong",
		}, &body)
	}

	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	require.NotEmpty(t, last.Header.Get("Retry-After"))
	require.Greater(t, body.RetryAfter, 0)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	resp := getJSON(t, baseURL+"/v1/admin/health", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, baseURL+"/v1/auth/logout", map[string]string{}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimitCheckPreflight(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	var body struct {
		Allowed   bool `json:"allowed"`
		Limit     int  `json:"limit"`
		Remaining int  `json:"remaining"`
	}
	resp := postJSON(t, baseURL+"/v1/auth/rate-limit-check", map[string]string{
		"email":      bootstrapEmail,
		"actionType": "authentication",
	}, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body.Allowed)
	require.Equal(t, 5, body.Limit)
}

func TestSecurityHeaders(t *testing.T) {
	baseURL, cleanup := setupGatewayContainer(t)
	defer cleanup()

	resp := getJSON(t, baseURL+"/livez", nil)
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
