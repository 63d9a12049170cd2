package services

import (
	"testing"

	"github.com/kwanter/sakip-sub003/internal/utils"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	users := NewUserService(env.db, env.logs)

	_, err := users.Create(admin, &CreateUserRequest{Username: "budi", Password: "secret1", Role: "superuser"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	u, err := users.Create(admin, &CreateUserRequest{Username: "budi", Password: "secret1", Role: workflow.RoleOperator})
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.True(t, utils.CheckPassword("secret1", u.Password))

	_, err = users.Create(admin, &CreateUserRequest{Username: "budi", Password: "secret2", Role: workflow.RoleViewer})
	assert.ErrorIs(t, err, ErrConflict)

	role := workflow.RoleApprover
	pw := "changed1"
	updated, err := users.Update(admin, u.ID, &UpdateUserRequest{Role: &role, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleApprover, updated.Role)
	assert.True(t, utils.CheckPassword("changed1", updated.Password))

	history, err := env.logs.History("user", u.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.NotContains(t, string(history[1].NewValues), "changed1")
}

func TestUserService_CannotDeactivateSelf(t *testing.T) {
	env := newTestEnv(t)
	users := NewUserService(env.db, env.logs)
	u, err := users.Create(admin, &CreateUserRequest{Username: "siti", Password: "secret1", Role: workflow.RoleAdmin})
	require.NoError(t, err)

	inactive := false
	_, err = users.Update(Principal{UserID: u.ID, Role: u.Role}, u.ID, &UpdateUserRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := users.List(&UserListRequest{Search: "sit"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}
