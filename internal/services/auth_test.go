package services

import (
	"testing"

	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/utils"
	"github.com/kwanter/sakip-sub003/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return NewAuthService(env.db, &config.JWTConfig{Secret: "test", ExpireHour: 2}, env.logs), env
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	auth, env := newAuthService(t)
	require.NoError(t, auth.EnsureAdmin("admin", "admin123"))
	require.NoError(t, auth.EnsureAdmin("root", "other"))

	var users []models.User
	require.NoError(t, env.db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, workflow.RoleAdmin, users[0].Role)
	assert.NotEqual(t, "admin123", users[0].Password)
}

func TestLogin(t *testing.T) {
	auth, env := newAuthService(t)
	require.NoError(t, auth.EnsureAdmin("admin", "admin123"))

	resp, err := auth.Login(&LoginRequest{Username: "admin", Password: "admin123"}, "10.0.0.1", "curl")
	require.NoError(t, err)
	require.NotNil(t, resp.User.LastLogin)

	claims, err := utils.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, workflow.RoleAdmin, claims.Role)

	var entry models.SystemLog
	require.NoError(t, env.db.Where("module = ? AND action = ?", "auth", "login").First(&entry).Error)
	assert.Equal(t, "10.0.0.1", entry.IP)
}

func TestLogin_Failures(t *testing.T) {
	auth, env := newAuthService(t)
	require.NoError(t, auth.EnsureAdmin("admin", "admin123"))

	_, err := auth.Login(&LoginRequest{Username: "admin", Password: "wrong"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, err = auth.Login(&LoginRequest{Username: "ghost", Password: "admin123"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	require.NoError(t, env.db.Model(&models.User{}).Where("username = ?", "admin").Update("is_active", false).Error)
	_, err = auth.Login(&LoginRequest{Username: "admin", Password: "admin123"}, "", "")
	assert.ErrorIs(t, err, ErrInvalidLogin)
}

func TestChangePassword(t *testing.T) {
	auth, env := newAuthService(t)
	require.NoError(t, auth.EnsureAdmin("admin", "admin123"))
	var u models.User
	require.NoError(t, env.db.First(&u).Error)
	p := Principal{UserID: u.ID, Role: u.Role}

	err := auth.ChangePassword(p, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "secret99"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, auth.ChangePassword(p, &ChangePasswordRequest{OldPassword: "admin123", NewPassword: "secret99"}))
	_, err = auth.Login(&LoginRequest{Username: "admin", Password: "secret99"}, "", "")
	assert.NoError(t, err)
}
