package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_PORT", "STORAGE_BACKEND", "STORAGE_KEY", "ATTENDANCE_API_BASE", "ATTENDANCE_BACKEND_URL", "RATE_LIMIT_PER_MIN", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, "attendance-tracker:v1", cfg.StorageKey)
	assert.Empty(t, cfg.APIBase)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Production())
}

func TestAPIBaseFirstNonEmptyWins(t *testing.T) {
	t.Setenv("ATTENDANCE_API_BASE", "   ")
	t.Setenv("ATTENDANCE_BACKEND_URL", " https://api.example.com ")
	assert.Equal(t, "https://api.example.com", FromEnv().APIBase)

	t.Setenv("ATTENDANCE_API_BASE", "https://primary.example.com")
	assert.Equal(t, "https://primary.example.com", FromEnv().APIBase)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("APP_ENV", "prod")

	cfg := FromEnv()
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "redis", cfg.StorageBackend)
	assert.True(t, cfg.Production())
}
