package http

import (
	"net/http"
	"time"
)

// setAuthCookie installs the signed token as an HttpOnly cookie. Secure is
// gated on production so local development over plain HTTP still works.
func setAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookie expires the auth cookie on logout.
func clearAuthCookie(w http.ResponseWriter, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	})
}
