package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"DATABASE_URL":   "postgres://localhost/lan",
		"JWT_SECRET_KEY": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
	assert.False(t, cfg.UploadsEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"STORAGE":               "memory",
		"JWT_SECRET_KEY":        "secret",
		"JWT_TTL":               "90m",
		"SERVER_PORT":           "9000",
		"LOG_LEVEL":             "debug",
		"CORS_ALLOWED_ORIGINS":  "http://localhost:5173, https://admin.lan ",
		"LOGIN_RATE_PER_MINUTE": "3",
		"R2_ACCOUNT_ID":         "acc",
		"R2_ACCESS_KEY_ID":      "key",
		"R2_SECRET_ACCESS_KEY":  "sec",
		"R2_BUCKET_NAME":        "bucket",
		"R2_PUBLIC_BASE_URL":    "https://cdn.lan",
	}))
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:5173", "https://admin.lan"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 3, cfg.LoginRatePerMinute)
	assert.True(t, cfg.UploadsEnabled())
}

func TestFromEnv_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database url": {"JWT_SECRET_KEY": "s"},
		"missing secret":       {"DATABASE_URL": "postgres://x"},
		"bad storage":          {"STORAGE": "redis", "JWT_SECRET_KEY": "s"},
		"bad port":             {"STORAGE": "memory", "JWT_SECRET_KEY": "s", "SERVER_PORT": "70000"},
		"bad ttl":              {"STORAGE": "memory", "JWT_SECRET_KEY": "s", "JWT_TTL": "forever"},
		"bad level":            {"STORAGE": "memory", "JWT_SECRET_KEY": "s", "LOG_LEVEL": "loud"},
		"bad rate":             {"STORAGE": "memory", "JWT_SECRET_KEY": "s", "LOGIN_RATE_PER_MINUTE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envFrom(env))
			assert.Error(t, err)
		})
	}
}
