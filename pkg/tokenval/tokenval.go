// Package tokenval performs structural validation of bearer tokens.
//
// This is a cheap pre-filter run before any cryptographic verification: it
// decodes the token, checks shape, algorithm, issuer, audience and timestamp
// sanity, and rejects obviously bad tokens without touching a key. Signature
// verification stays with the identity provider client.
package tokenval

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Failure reasons returned in Result.Reason.
const (
	ReasonStructure      = "invalid_structure"
	ReasonEncoding       = "invalid_encoding"
	ReasonAlgorithm      = "invalid_algorithm"
	ReasonKeyID          = "invalid_key_id"
	ReasonIssuer         = "invalid_issuer"
	ReasonAudience       = "invalid_audience"
	ReasonSubject        = "invalid_subject"
	ReasonTimestamps     = "invalid_timestamps"
	ReasonExpired        = "token_expired"
	ReasonIssuedInFuture = "issued_in_future"
	ReasonTooOld         = "exceeds_max_lifetime"
)

const (
	// DefaultClockSkew tolerates small clock drift between the token
	// issuer and this process when checking iat.
	DefaultClockSkew = 5 * time.Minute

	// DefaultMaxLifetime is the provider's maximum token lifetime. A token
	// older than this is stale regardless of its own exp claim.
	DefaultMaxLifetime = time.Hour

	maxKeyIDLength   = 128
	maxSubjectLength = 128
	maxClaimLength   = 256
)

// Result is the outcome of a structural check. Reason is set only when the
// token is invalid.
type Result struct {
	Valid  bool
	Reason string
}

// Config holds the static expectations applied to every token.
type Config struct {
	// Issuer, when set, must match the iss claim exactly. When empty any
	// https issuer is accepted.
	Issuer string

	// Audience, when set, must match the aud claim exactly.
	Audience string

	// Algorithm the provider signs with. Defaults to RS256.
	Algorithm string

	// ClockSkew and MaxLifetime default to DefaultClockSkew and
	// DefaultMaxLifetime when zero.
	ClockSkew   time.Duration
	MaxLifetime time.Duration

	// Now is the time source, defaulting to time.Now. Tests inject this.
	Now func() time.Time
}

// Validator checks token structure against a fixed Config. It is a pure
// function over the token, the clock and the config; safe for concurrent use.
type Validator struct {
	cfg Config
}

// New returns a Validator, filling config defaults.
func New(cfg Config) *Validator {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "RS256"
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = DefaultMaxLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Validator{cfg: cfg}
}

func invalid(reason string) Result { return Result{Valid: false, Reason: reason} }

// Validate runs the structural checks and reports the first failure.
func (v *Validator) Validate(token string) Result {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return invalid(ReasonStructure)
	}

	header, ok := decodeSegment(parts[0])
	if !ok {
		return invalid(ReasonEncoding)
	}
	payload, ok := decodeSegment(parts[1])
	if !ok {
		return invalid(ReasonEncoding)
	}

	if r := v.checkHeader(header); !r.Valid {
		return r
	}
	return v.checkPayload(payload)
}

func (v *Validator) checkHeader(header map[string]any) Result {
	alg, _ := header["alg"].(string)
	if alg != v.cfg.Algorithm {
		return invalid(ReasonAlgorithm)
	}

	kid, _ := header["kid"].(string)
	if kid == "" || len(kid) > maxKeyIDLength {
		return invalid(ReasonKeyID)
	}

	return Result{Valid: true}
}

func (v *Validator) checkPayload(payload map[string]any) Result {
	iss, _ := payload["iss"].(string)
	switch {
	case iss == "" || len(iss) > maxClaimLength:
		return invalid(ReasonIssuer)
	case v.cfg.Issuer != "":
		if iss != v.cfg.Issuer {
			return invalid(ReasonIssuer)
		}
	case !strings.HasPrefix(iss, "https://"):
		return invalid(ReasonIssuer)
	}

	aud, ok := audienceClaim(payload["aud"])
	if !ok || len(aud) > maxClaimLength {
		return invalid(ReasonAudience)
	}
	if v.cfg.Audience != "" && aud != v.cfg.Audience {
		return invalid(ReasonAudience)
	}

	sub, _ := payload["sub"].(string)
	if sub == "" || len(sub) > maxSubjectLength {
		return invalid(ReasonSubject)
	}

	exp, expOK := numberClaim(payload["exp"])
	iat, iatOK := numberClaim(payload["iat"])
	if !expOK || !iatOK || exp <= iat {
		return invalid(ReasonTimestamps)
	}

	now := v.cfg.Now()
	expiry := time.Unix(int64(exp), 0)
	issued := time.Unix(int64(iat), 0)

	if !expiry.After(now) {
		return invalid(ReasonExpired)
	}
	if issued.After(now.Add(v.cfg.ClockSkew)) {
		return invalid(ReasonIssuedInFuture)
	}
	if now.Sub(issued) > v.cfg.MaxLifetime {
		return invalid(ReasonTooOld)
	}

	return Result{Valid: true}
}

// decodeSegment base64url-decodes a token segment and parses it as a JSON
// object. Padding variants are tolerated; JWT segments are unpadded but some
// producers pad anyway.
func decodeSegment(seg string) (map[string]any, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return nil, false
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// audienceClaim accepts the two shapes aud takes in the wild: a single
// string, or an array whose first element is taken.
func audienceClaim(v any) (string, bool) {
	switch aud := v.(type) {
	case string:
		return aud, aud != ""
	case []any:
		if len(aud) == 0 {
			return "", false
		}
		s, ok := aud[0].(string)
		return s, ok && s != ""
	default:
		return "", false
	}
}

// numberClaim requires the claim to be a JSON number.
func numberClaim(v any) (float64, bool) {
	n, ok := v.(float64)
	return n, ok
}
