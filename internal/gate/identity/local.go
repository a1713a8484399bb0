package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// localClaims is the wire shape of locally issued tokens.
type localClaims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	SID   string `json:"sid,omitempty"`
}

// LocalProvider signs and verifies tokens with an RS256 keypair held by
// this process. Key material loads lazily on first use so construction
// never blocks startup; a broken key surfaces as ErrUnavailable on the
// first issue or verify instead.
type LocalProvider struct {
	issuer   string
	audience string
	kid      string
	lifetime time.Duration

	// pemKey is the configured private key, empty to generate one at
	// first use (single-instance deployments where tokens may not
	// survive a restart).
	pemKey []byte

	initOnce sync.Once
	initErr  error
	key      *rsa.PrivateKey

	now func() time.Time
}

type LocalOption func(*LocalProvider)

// WithPrivateKeyPEM supplies the RS256 signing key. Without it the
// provider generates an ephemeral keypair on first use.
func WithPrivateKeyPEM(pemKey []byte) LocalOption {
	return func(p *LocalProvider) { p.pemKey = pemKey }
}

func WithLocalClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) { p.now = now }
}

func NewLocalProvider(issuer, audience, kid string, lifetime time.Duration, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LocalProvider) init() error {
	p.initOnce.Do(func() {
		if len(p.pemKey) == 0 {
			p.key, p.initErr = rsa.GenerateKey(rand.Reader, 2048)
			return
		}
		p.key, p.initErr = parseRSAPrivateKey(p.pemKey)
	})
	if p.initErr != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, p.initErr)
	}
	return nil
}

// parseRSAPrivateKey handles both PKCS1 and PKCS8 PEM blocks. Operators
// hand us whichever format their tooling produced.
func parseRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("identity: invalid PEM for RSA key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("identity: parse PKCS8: %w", err)
		}
		key, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("identity: not an RSA private key")
		}
		return key, nil
	default:
		return nil, fmt.Errorf("identity: unsupported PEM type %q", block.Type)
	}
}

func (p *LocalProvider) IssueToken(ctx context.Context, claims Claims) (string, error) {
	if err := p.init(); err != nil {
		return "", err
	}

	now := p.now()
	expiry := claims.ExpiresAt
	if expiry.IsZero() {
		expiry = now.Add(p.lifetime)
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   claims.Subject,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
		Email: claims.Email,
		Role:  claims.Role,
		SID:   claims.SessionID,
	})
	t.Header["kid"] = p.kid

	return t.SignedString(p.key)
}

func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (Claims, error) {
	if err := p.init(); err != nil {
		return Claims{}, err
	}
	if err := ctx.Err(); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)

	parsed, err := parser.ParseWithClaims(token, &localClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != p.kid {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return &p.key.PublicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	lc, ok := parsed.Claims.(*localClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrVerification
	}

	out := Claims{
		Subject:   lc.Subject,
		Email:     lc.Email,
		Role:      lc.Role,
		SessionID: lc.SID,
	}
	if lc.IssuedAt != nil {
		out.IssuedAt = lc.IssuedAt.Time
	}
	if lc.ExpiresAt != nil {
		out.ExpiresAt = lc.ExpiresAt.Time
	}
	return out, nil
}

func (p *LocalProvider) Healthy(ctx context.Context) error {
	return p.init()
}
