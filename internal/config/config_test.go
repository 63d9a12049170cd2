package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0 2 * * *", cfg.Scoring.RecalculateCron)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"9090\"\ndatabase:\n  driver: postgres\n  dsn: host=db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24, cfg.JWT.ExpireHour)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_EXPIRE_HOUR", "8")
	t.Setenv("SCORING_CRON", "*/5 * * * *")
	t.Setenv("ALLOWED_ORIGINS", "http://a,http://b")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.JWT.ExpireHour)
	assert.Equal(t, "*/5 * * * *", cfg.Scoring.RecalculateCron)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.Origins)
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url      string
		addr     string
		password string
		db       int
	}{
		{"redis://localhost:6379", "localhost:6379", "", 0},
		{"redis://:secret@cache:6380/2", "cache:6380", "secret", 2},
		{"redis://user:pw@host:6379/1", "host:6379", "pw", 1},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.parseRedisURL(tt.url)
		assert.Equal(t, tt.addr, cfg.Redis.Addr, tt.url)
		assert.Equal(t, tt.password, cfg.Redis.Password, tt.url)
		assert.Equal(t, tt.db, cfg.Redis.DB, tt.url)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Log.Level = "debug"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Log.Level)
}
