package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tessara-ic/authgate/internal/gate/identity"
)

func TestLocalProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour)

	token, err := p.IssueToken(ctx, identity.Claims{
		Subject:   "user-1",
		Email:     "ops@tessara.example",
		Role:      "admin",
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := p.VerifyToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "ops@tessara.example", claims.Email)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, "sess-1", claims.SessionID)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestLocalProviderRejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	issuerA := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour)
	issuerB := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour)

	token, err := issuerA.IssueToken(ctx, identity.Claims{Subject: "user-1"})
	require.NoError(t, err)

	// Same issuer string and kid, different keypair. Signature must fail.
	_, err = issuerB.VerifyToken(ctx, token)
	require.ErrorIs(t, err, identity.ErrVerification)
}

func TestLocalProviderRejectsExpired(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-2 * time.Hour)
	p := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour,
		identity.WithLocalClock(func() time.Time { return past }))

	token, err := p.IssueToken(ctx, identity.Claims{Subject: "user-1"})
	require.NoError(t, err)

	_, err = p.VerifyToken(ctx, token)
	require.ErrorIs(t, err, identity.ErrVerification)
}

func TestLocalProviderRejectsWrongAudience(t *testing.T) {
	ctx := context.Background()
	minter := identity.NewLocalProvider("https://auth.tessara.example", "some-other-app", "local-1", time.Hour)

	token, err := minter.IssueToken(ctx, identity.Claims{Subject: "user-1"})
	require.NoError(t, err)

	_, err = minter.VerifyToken(ctx, token)
	require.NoError(t, err)

	verifier := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour)
	_, err = verifier.VerifyToken(ctx, token)
	require.ErrorIs(t, err, identity.ErrVerification)
}

func TestLocalProviderFailsClosedOnCancelledContext(t *testing.T) {
	p := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour)

	token, err := p.IssueToken(context.Background(), identity.Claims{Subject: "user-1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.VerifyToken(ctx, token)
	require.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestLocalProviderBadKeySurfacesOnFirstUse(t *testing.T) {
	p := identity.NewLocalProvider("https://auth.tessara.example", "tessara-admin", "local-1", time.Hour,
		identity.WithPrivateKeyPEM([]byte("not a pem")))

	require.ErrorIs(t, p.Healthy(context.Background()), identity.ErrUnavailable)

	_, err := p.IssueToken(context.Background(), identity.Claims{Subject: "user-1"})
	require.ErrorIs(t, err, identity.ErrUnavailable)
}
