package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sakip-utils-test-secret"

func init() {
	SetJWTSecret(testSecret)
}

func TestToken_RoundTripClaims(t *testing.T) {
	token, err := GenerateToken(42, "budi.operator", "operator", 8)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "budi.operator", claims.Username)
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_UniquePerIssue(t *testing.T) {
	first, err := GenerateToken(7, "siti.approver", "approver", 24)
	require.NoError(t, err)
	second, err := GenerateToken(7, "siti.approver", "approver", 24)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := GenerateToken(3, "andi.viewer", "viewer", -1)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		Username:         "admin",
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "other-app", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	wrongIssuer, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"bad signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.e30.c2lnbmF0dXJl"},
		{"expired", expired},
		{"wrong issuer", wrongIssuer},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestSetJWTSecret_RotationInvalidatesTokens(t *testing.T) {
	t.Cleanup(func() { SetJWTSecret(testSecret) })

	SetJWTSecret("periode-2024")
	token, err := GenerateToken(1, "admin", "admin", 24)
	require.NoError(t, err)
	_, err = ParseToken(token)
	require.NoError(t, err)

	SetJWTSecret("periode-2025")
	_, err = ParseToken(token)
	assert.Error(t, err)
}
