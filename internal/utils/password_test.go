package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Salted(t *testing.T) {
	first, err := HashPassword("sakip-admin-2024")
	require.NoError(t, err)
	second, err := HashPassword("sakip-admin-2024")
	require.NoError(t, err)

	assert.NotEqual(t, "sakip-admin-2024", first)
	assert.Regexp(t, `^\$2[aby]\$10\$`, first)
	assert.NotEqual(t, first, second)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("Renstra#2025")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"match", "Renstra#2025", hash, true},
		{"other password", "Renja#2025", hash, false},
		{"case differs", "renstra#2025", hash, false},
		{"trailing space", "Renstra#2025 ", hash, false},
		{"empty password", "", hash, false},
		{"empty hash", "Renstra#2025", "", false},
		{"malformed hash", "Renstra#2025", "not-a-bcrypt-hash", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.password, tt.hash))
		})
	}
}
