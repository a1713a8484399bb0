package domain

import "time"

// Principal is the authenticated identity handed to guarded handlers.
type Principal struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"-"`
}

// SessionRecord represents one active login for a user; a user has one
// record per device or tab.
type SessionRecord struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether the session may still authorize requests.
// A revoked session never authorizes again, regardless of expiry.
func (s SessionRecord) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
