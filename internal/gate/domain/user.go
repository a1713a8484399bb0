package domain

import "time"

// Staff roles. Editors manage content; admins additionally see operational
// surfaces like the health endpoint.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// User is a staff account in the admin directory.
type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2id, PHC format
	TOTPSecret   string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
