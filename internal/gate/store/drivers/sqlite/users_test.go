package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessara-ic/authgate/internal/gate/domain"
	"github.com/tessara-ic/authgate/internal/gate/store"
	"github.com/tessara-ic/authgate/internal/gate/store/drivers/sqlite"
	"github.com/tessara-ic/authgate/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	users := st.Users()

	empty, err := users.IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        "ops@tessara.example",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		TOTPSecret:   "JBSWY3DPEHPK3PXP",
		Role:         domain.RoleAdmin,
	}
	require.NoError(t, users.CreateUser(ctx, u))

	empty, err = users.IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	byID, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
	require.Equal(t, u.PasswordHash, byID.PasswordHash)
	require.Equal(t, u.TOTPSecret, byID.TOTPSecret)
	require.Equal(t, u.Role, byID.Role)
	require.False(t, byID.CreatedAt.IsZero())

	byEmail, err := users.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
}

func TestUserNotFound(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Users().GetUserByEmail(ctx, "missing@tessara.example")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuplicateEmailRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	users := st.Users()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        "ops@tessara.example",
		PasswordHash: "hash",
		Role:         domain.RoleEditor,
	}
	require.NoError(t, users.CreateUser(ctx, u))

	dup := u
	dup.ID = idx.New().String()
	require.Error(t, users.CreateUser(ctx, dup))
}

func TestUpdatePasswordHash(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	users := st.Users()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        "ops@tessara.example",
		PasswordHash: "old",
		Role:         domain.RoleEditor,
	}
	require.NoError(t, users.CreateUser(ctx, u))

	require.NoError(t, users.UpdatePasswordHash(ctx, u.ID, "new"))

	got, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)

	require.ErrorIs(t, users.UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)
}

func TestUpdateTOTPSecret(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	users := st.Users()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        "ops@tessara.example",
		PasswordHash: "hash",
		Role:         domain.RoleEditor,
	}
	require.NoError(t, users.CreateUser(ctx, u))

	require.NoError(t, users.UpdateTOTPSecret(ctx, u.ID, "NEWSECRET"))

	got, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "NEWSECRET", got.TOTPSecret)
}
