package usecases

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sand/digiseba/backend/internal/entities"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.users.Register(ctx, Registration{Name: "Karim", Email: " Karim@Example.com", Password: "secret-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "karim@example.com", res.User.Email)
	require.Equal(t, entities.RoleUser, res.User.Role)

	_, err = env.users.Register(ctx, Registration{Name: "Karim", Email: "karim@example.com", Password: "secret-pass"})
	requireCode(t, err, http.StatusConflict)

	_, err = env.users.Register(ctx, Registration{Name: "Karim", Email: "karim2@example.com", Password: "short"})
	requireCode(t, err, http.StatusBadRequest)

	login, err := env.users.Login(ctx, "KARIM@example.com", "secret-pass")
	require.NoError(t, err)
	require.Equal(t, res.User.ID, login.User.ID)

	_, err = env.users.Login(ctx, "karim@example.com", "wrong-pass")
	requireCode(t, err, http.StatusUnauthorized)
	_, err = env.users.Login(ctx, "nobody@example.com", "secret-pass")
	requireCode(t, err, http.StatusUnauthorized)

	me, err := env.users.Me(ctx, res.User.ID)
	require.NoError(t, err)
	require.Equal(t, "Karim", me.Name)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.EnsureAdmin(ctx, "admin@example.com", "admin-password"))
	require.NoError(t, env.users.EnsureAdmin(ctx, "", ""))

	admin, err := env.users.Me(ctx, env.adminID)
	require.NoError(t, err)
	require.Equal(t, entities.RoleAdmin, admin.Role)

	page, err := env.users.List(ctx, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
}

func TestListUsersPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 23; i++ {
		_, err := env.users.Register(ctx, Registration{Name: fmt.Sprintf("User %d", i), Email: fmt.Sprintf("user%d@example.com", i), Password: "password123"})
		require.NoError(t, err)
	}

	page, err := env.users.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page.Page)
	require.Equal(t, 20, page.Limit)
	require.Equal(t, 25, page.Total)
	require.Len(t, page.Users, 20)

	page, err = env.users.List(ctx, 2, 20)
	require.NoError(t, err)
	require.Len(t, page.Users, 5)

	page, err = env.users.List(ctx, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, 100, page.Limit)
	require.Len(t, page.Users, 25)

	page, err = env.users.List(ctx, 9, 20)
	require.NoError(t, err)
	require.Empty(t, page.Users)
}
