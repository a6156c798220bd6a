package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/auth"
	"staffdesk/internal/db/dbtest"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

func newSetup(t *testing.T) (*Setup, *repo.UserStore) {
	t.Helper()
	d := dbtest.Open(t)
	users := repo.NewUserStore(d)
	return New(users, repo.NewTransactor(d)), users
}

func TestCreateAdmin_OnlyOnce(t *testing.T) {
	t.Parallel()
	s, users := newSetup(t)
	ctx := context.Background()

	u, err := s.CreateAdmin(ctx, Admin{Username: " root ", Password: "correct horse", Email: "Ops@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "root", u.Username)
	assert.Equal(t, "ops@example.com", u.Email)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.RequirePasswordChange)

	stored, err := users.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.True(t, auth.ComparePasswords("correct horse", stored.PasswordHash))

	_, err = s.CreateAdmin(ctx, Admin{Username: "second", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrUsersExist)
}

func TestCreateAdmin_Validation(t *testing.T) {
	t.Parallel()
	s, _ := newSetup(t)

	for field, a := range map[string]Admin{
		"username": {Password: "long-enough"},
		"password": {Username: "root", Password: "short"},
		"email":    {Username: "root", Password: "long-enough", Email: "nope"},
	} {
		_, err := s.CreateAdmin(context.Background(), a)
		var fe *models.FieldError
		require.True(t, errors.As(err, &fe), field)
		assert.Equal(t, field, fe.Field)
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	s, users := newSetup(t)
	ctx := context.Background()

	created, err := s.FromConfig(ctx, Admin{})
	require.NoError(t, err)
	assert.False(t, created, "opt-in only")

	created, err = s.FromConfig(ctx, Admin{Username: "ops", Password: "from-env-secret"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.FromConfig(ctx, Admin{Username: "ops2", Password: "from-env-secret"})
	require.NoError(t, err)
	assert.False(t, created, "existing users win")

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestInspect_ReportsMalformedWithoutRewriting(t *testing.T) {
	t.Parallel()
	s, users := newSetup(t)
	ctx := context.Background()

	rep, err := s.Inspect(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Users)
	require.NoError(t, s.Check(ctx))

	require.NoError(t, users.Create(ctx, &models.User{Username: "legacy", PasswordHash: "not-a-hash", Role: models.RoleAdmin}))
	require.NoError(t, users.Create(ctx, &models.User{Username: "hr1", PasswordHash: "also-bad", Role: models.RoleHR}))

	rep, err = s.Inspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rep.Users)
	assert.Equal(t, []string{"legacy"}, rep.Malformed)
	require.NoError(t, s.Check(ctx))

	u, err := users.GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "not-a-hash", u.PasswordHash)

	require.NoError(t, s.ResetPassword(ctx, Admin{Username: "legacy", Password: "rotated-pass"}))
	u, err = users.GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, auth.WellFormedHash(u.PasswordHash))
	assert.True(t, u.RequirePasswordChange)

	assert.Error(t, s.ResetPassword(ctx, Admin{Username: "hr1", Password: "rotated-pass"}), "only admins")
	assert.Error(t, s.ResetPassword(ctx, Admin{Username: "ghost", Password: "rotated-pass"}))
}
