// Package identity abstracts the token-issuing identity provider behind a
// single interface so the rest of the gateway never touches provider SDK
// types directly. The local RS256 provider is the default; a hosted
// provider can slot in behind the same interface.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVerification covers any cryptographic verification failure. The
	// caller maps it to a generic 401 without leaking the cause.
	ErrVerification = errors.New("identity: token verification failed")

	// ErrUnavailable means the provider could not be reached or failed to
	// initialize. Verification fails closed on this.
	ErrUnavailable = errors.New("identity: provider unavailable")
)

// Claims is the provider-independent view of a verified token.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provider issues and verifies admin tokens. Implementations must be safe
// for concurrent use and must initialize any underlying SDK or key material
// lazily on first use, not at construction.
type Provider interface {
	// IssueToken mints a signed token for the given claims.
	IssueToken(ctx context.Context, claims Claims) (string, error)

	// VerifyToken checks the signature and registered claims and returns
	// the parsed claims. Context cancellation aborts the call; callers
	// bound it with a deadline so a hung provider cannot stall requests.
	VerifyToken(ctx context.Context, token string) (Claims, error)

	// Healthy reports whether the provider is initialized and usable.
	Healthy(ctx context.Context) error
}
