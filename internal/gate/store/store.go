package store

import (
	"context"
	"errors"
	"time"

	"github.com/tessara-ic/authgate/internal/gate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the durable data access interface for the staff user directory.
// The sqlite driver implements this.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login step one.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// UpdateTOTPSecret sets the second-factor secret and bumps updated_at.
	UpdateTOTPSecret(ctx context.Context, userID string, secret string) error

	// IsEmpty returns true if there are no users. Used by startup bootstrap.
	IsEmpty(ctx context.Context) (bool, error)
}

// Sessions tracks active login sessions. The memory driver is the default;
// the redis driver is selected when multi-instance deployments need shared
// state. Memory-backed state does not survive a restart, which forces all
// users to re-authenticate; that trade-off is accepted and documented.
type Sessions interface {
	// Create records a new session for the user and returns it.
	Create(ctx context.Context, userID string, ttl time.Duration) (domain.SessionRecord, error)

	// Get returns a session by id.
	Get(ctx context.Context, sessionID string) (domain.SessionRecord, error)

	// RevokeUser marks every session for the user revoked and returns how
	// many were affected.
	RevokeUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired removes sessions past their TTL (housekeeping).
	DeleteExpired(ctx context.Context) (int, error)

	// ActiveCount returns the number of currently active sessions.
	ActiveCount(ctx context.Context) (int, error)
}

// Revocations is the token revocation registry. A token whose issued-at
// precedes the user's recorded revocation instant is invalid regardless of
// its own expiry.
type Revocations interface {
	// Revoke records that all tokens issued to the user up to now are dead.
	Revoke(ctx context.Context, userID string) error

	// IsRevoked reports whether a token issued at issuedAt for the user
	// falls under a recorded revocation.
	IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)

	// Count returns the number of live revocation entries.
	Count(ctx context.Context) (int, error)

	// DeleteStale prunes entries older than the given age. Entries older
	// than the provider's max token lifetime can no longer match any
	// verifiable token.
	DeleteStale(ctx context.Context, olderThan time.Duration) (int, error)
}
