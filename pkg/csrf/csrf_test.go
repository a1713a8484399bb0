package csrf_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tessara-ic/authgate/pkg/csrf"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 chars

func TestNewRejectsShortSecret(t *testing.T) {
	_, err := csrf.New("too-short")
	require.ErrorIs(t, err, csrf.ErrSecretTooShort)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc, err := csrf.New(testSecret)
	require.NoError(t, err)

	for range 10 {
		token, err := svc.Issue()
		require.NoError(t, err)
		require.True(t, svc.Verify(token))
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	svc, err := csrf.New(testSecret)
	require.NoError(t, err)

	token, err := svc.Issue()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)

	// Flip the last character of the signature segment.
	payload := string(raw)
	last := payload[len(payload)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := base64.StdEncoding.EncodeToString([]byte(payload[:len(payload)-1] + string(flipped)))

	require.False(t, svc.Verify(tampered))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	clock := &now

	svc, err := csrf.New(testSecret, csrf.WithClock(func() time.Time { return *clock }))
	require.NoError(t, err)

	token, err := svc.Issue()
	require.NoError(t, err)
	require.True(t, svc.Verify(token))

	// Jump past the 24h window. Signature is still valid, age is not.
	later := now.Add(24*time.Hour + time.Minute)
	clock = &later
	require.False(t, svc.Verify(token))
}

func TestVerifyRejectsFutureTimestamp(t *testing.T) {
	now := time.Now()
	clock := &now

	svc, err := csrf.New(testSecret, csrf.WithClock(func() time.Time { return *clock }))
	require.NoError(t, err)

	token, err := svc.Issue()
	require.NoError(t, err)

	earlier := now.Add(-10 * time.Minute)
	clock = &earlier
	require.False(t, svc.Verify(token))
}

func TestVerifyFailsClosedOnMalformedInput(t *testing.T) {
	svc, err := csrf.New(testSecret)
	require.NoError(t, err)

	cases := []string{
		"",
		"not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("only-two")),
		base64.StdEncoding.EncodeToString([]byte("a-b-c-d")),
		base64.StdEncoding.EncodeToString([]byte("notanumber-deadbeef-cafe")),
	}
	for _, token := range cases {
		require.False(t, svc.Verify(token), "token %q", token)
	}
}

func TestVerifyRejectsTokenFromOtherSecret(t *testing.T) {
	a, err := csrf.New(testSecret)
	require.NoError(t, err)
	b, err := csrf.New(strings.Repeat("x", 32))
	require.NoError(t, err)

	token, err := a.Issue()
	require.NoError(t, err)
	require.False(t, b.Verify(token))
}

func TestHealthRoundTripAndCache(t *testing.T) {
	now := time.Now()
	clock := &now

	svc, err := csrf.New(testSecret, csrf.WithClock(func() time.Time { return *clock }))
	require.NoError(t, err)

	require.NoError(t, svc.Health())

	// Within the cache TTL the previous result is reused.
	require.NoError(t, svc.Health())

	later := now.Add(2 * time.Minute)
	clock = &later
	require.NoError(t, svc.Health())
}
