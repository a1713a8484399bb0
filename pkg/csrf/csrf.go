// Package csrf issues and verifies stateless anti-forgery tokens.
//
// A token encodes an issue timestamp, a random nonce and an HMAC-SHA256
// signature over both under a server secret. Nothing is stored server-side;
// the trade-off is a replay window bounded by the token max age.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// MinSecretLength is the minimum accepted signing secret length.
	MinSecretLength = 32

	// DefaultMaxAge is how long an issued token stays verifiable.
	DefaultMaxAge = 24 * time.Hour

	// nonceBytes is the entropy per token (hex-encoded, so no hyphens).
	nonceBytes = 16

	// issueSkew tolerates small clock differences when a token arrives
	// with a timestamp slightly in the future.
	issueSkew = time.Minute

	// healthCacheTTL bounds how often Health recomputes the round trip.
	healthCacheTTL = time.Minute
)

var ErrSecretTooShort = errors.New("csrf: signing secret shorter than 32 characters")

// Service mints and verifies CSRF tokens. Safe for concurrent use.
type Service struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time

	healthMu  sync.Mutex
	healthAt  time.Time
	healthErr error
}

// Option tweaks Service construction.
type Option func(*Service)

// WithMaxAge overrides the token max age window.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) { s.maxAge = d }
}

// WithClock injects a time source. Tests use this to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service signing with the given secret.
func New(secret string, opts ...Option) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	s := &Service{
		secret: []byte(secret),
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints a fresh token. An error here is fatal to the issuing request;
// a token simply cannot be produced without entropy.
func (s *Service) Issue() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	payload := ts + "-" + nonce + "-" + s.sign(ts, nonce)

	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

// Verify reports whether the token carries a valid signature and is within
// the max age window. Any malformed input fails closed.
func (s *Service) Verify(token string) bool {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return false
	}

	parts := strings.Split(string(raw), "-")
	if len(parts) != 3 {
		return false
	}
	ts, nonce, sig := parts[0], parts[1], parts[2]

	issuedMilli, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	issued := time.UnixMilli(issuedMilli)

	now := s.now()
	if now.Sub(issued) > s.maxAge {
		return false
	}
	if issued.After(now.Add(issueSkew)) {
		return false
	}

	// hmac.Equal is constant-time.
	return hmac.Equal([]byte(sig), []byte(s.sign(ts, nonce)))
}

// Health confirms the secret is usable and an issue/verify round trip
// succeeds. The result is cached briefly since health endpoints may be
// polled aggressively.
func (s *Service) Health() error {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	if !s.healthAt.IsZero() && s.now().Sub(s.healthAt) < healthCacheTTL {
		return s.healthErr
	}

	s.healthAt = s.now()
	s.healthErr = s.roundTrip()
	return s.healthErr
}

func (s *Service) roundTrip() error {
	if len(s.secret) < MinSecretLength {
		return ErrSecretTooShort
	}

	token, err := s.Issue()
	if err != nil {
		return err
	}
	if !s.Verify(token) {
		return errors.New("csrf: freshly issued token failed verification")
	}
	return nil
}

func (s *Service) sign(ts, nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ts + "-" + nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
