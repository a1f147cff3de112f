package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "APP_ENV", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL", "FEED_CHANNEL",
		"CARRYOVER_CACHE_TTL_SECONDS", "ACCESS_TOKEN_TTL_MINUTES", "PERSIST_TIMEOUT_SECONDS", "STATUS_CLEAR_MILLIS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.True(t, cfg.Development())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "habibeat:daily_entries", cfg.FeedChannel)
	assert.Equal(t, 5*time.Minute, cfg.CarryOverCacheTTL)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, 10*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 2*time.Second, cfg.StatusClearAfter)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("DATABASE_URL", " postgres://habibeat@localhost/habibeat ")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("STATUS_CLEAR_MILLIS", "750")
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123456789abcdef")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.Development())
	assert.Equal(t, "postgres://habibeat@localhost/habibeat", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, 750*time.Millisecond, cfg.StatusClearAfter)
	assert.Len(t, cfg.AuthSecret, 32)
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "abc")
	t.Setenv("PERSIST_TIMEOUT_SECONDS", "-3")
	t.Setenv("CARRYOVER_CACHE_TTL_SECONDS", "0")

	cfg := Load()
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, 10*time.Second, cfg.PersistTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CarryOverCacheTTL)
}
