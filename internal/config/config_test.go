package config_test

import (
	"testing"
	"time"

	"github.com/zynqcloud/securevault/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, int64(150<<20), cfg.MaxFileSize)
	assert.Equal(t, 100, cfg.RateLimitMaxRequests)
	assert.Equal(t, 256, cfg.MaxConcurrentUploads)
}

func TestLoadRespectsEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_EXPIRES_IN", "2d")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")

	cfg := config.Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 48*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, int64(1048576), cfg.MaxFileSize)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}
