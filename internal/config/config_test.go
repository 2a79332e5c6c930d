package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "DEV_MODE", "SESSION_SECRET", "SESSION_TTL", "STORE_DRIVER",
		"DATABASE_URL", "CATALOG_FILE", "RATE_LIMIT_PER_MIN", "METRICS_TOKEN", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", secret)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "memory", c.StoreDriver)
	assert.Equal(t, 30*24*time.Hour, c.SessionTTL)
	assert.Equal(t, 120, c.RateLimitPerMin)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
}

func TestLoad_SessionSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "short")

	_, err := Load()
	assert.ErrorIs(t, err, ErrSessionSecret)

	t.Setenv("DEV_MODE", "1")
	c, err := Load()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(c.SessionSecret), minSecretLen)
}

func TestLoad_StoreDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", secret)

	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Load()
	assert.ErrorIs(t, err, ErrDatabaseURL)

	t.Setenv("DATABASE_URL", "postgres://localhost/basket")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.StoreDriver)

	t.Setenv("STORE_DRIVER", "redis")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", secret)
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RATE_LIMIT_PER_MIN", "0")
	t.Setenv("SHUTDOWN_TIMEOUT", "nonsense")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.Equal(t, 0, c.RateLimitPerMin)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout, "bad duration falls back")
}
