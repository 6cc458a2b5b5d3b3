package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/ingest")
	t.Setenv("CLICKHOUSE_URL", "clickhouse://localhost:9000/analytics")
	t.Setenv("KEY_LOOKUP_SECRET", "lookup")
	t.Setenv("TOKEN_SIGNING_SECRET", "signing")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, float64(1000), cfg.KeyRate)
	assert.Equal(t, float64(5000), cfg.KeyBurst)
	assert.Equal(t, float64(10), cfg.AddrRate)
	assert.Equal(t, float64(20), cfg.AddrBurst)
	assert.Equal(t, int64(500*1024), cfg.MaxBodyBytes)
	assert.Equal(t, "memory", cfg.RateLimitMode)
}

func TestLoadMissingRequiredValues(t *testing.T) {
	for _, missing := range []string{"DB_URL", "CLICKHOUSE_URL", "KEY_LOOKUP_SECRET", "TOKEN_SIGNING_SECRET"} {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoadRedisModeRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_MODE", "redis")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.RateLimitMode)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_KEY_BURST", "42")
	t.Setenv("WRITER_FLUSH_INTERVAL", "250ms")
	t.Setenv("RATE_LIMIT_MODE", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, float64(42), cfg.KeyBurst)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, "off", cfg.RateLimitMode)
}
