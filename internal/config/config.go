package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the gateway. Secrets and
// store URLs are mandatory; everything else is a policy knob with a default
// matching observed production values.
type Config struct {
	ListenAddr string

	DBURL         string
	ClickHouseURL string

	// KeyLookupSecret keys the HMAC used to derive credential lookup hashes.
	// TokenSigningSecret signs widget tokens. Both are fatal if missing.
	KeyLookupSecret    string
	TokenSigningSecret string

	TokenTTL time.Duration

	CacheTTL      time.Duration
	CacheCapacity int

	// Rate limiting. Mode is "memory", "redis" or "off".
	RateLimitMode  string
	RedisURL       string
	KeyRate        float64
	KeyBurst       float64
	AddrRate       float64
	AddrBurst      float64
	SweepInterval  time.Duration
	BucketStaleAge time.Duration

	// Batch writer.
	BufferMax     int
	FlushSize     int
	FlushInterval time.Duration

	// Payload limits.
	MaxBodyBytes      int64
	MaxEventBytes     int
	MaxNameChars      int
	MaxUserIDChars    int
	MaxTraceChars     int
	MaxSessionChars   int
	MetadataLimit     int
	TraitsLimit       int
	ToolInputLimit    int
	IntentLimit       int
	ErrorMessageLimit int
}

// Load reads required values from environment variables and fails fast on
// missing secrets or store URLs.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:         envStr("LISTEN_ADDR", ":8080"),
		DBURL:              strings.TrimSpace(os.Getenv("DB_URL")),
		ClickHouseURL:      strings.TrimSpace(os.Getenv("CLICKHOUSE_URL")),
		KeyLookupSecret:    strings.TrimSpace(os.Getenv("KEY_LOOKUP_SECRET")),
		TokenSigningSecret: strings.TrimSpace(os.Getenv("TOKEN_SIGNING_SECRET")),
		TokenTTL:           15 * time.Minute,
		CacheTTL:           envDuration("KEY_CACHE_TTL", time.Minute),
		CacheCapacity:      envInt("KEY_CACHE_CAPACITY", 10000),
		RateLimitMode:      envStr("RATE_LIMIT_MODE", "memory"),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		KeyRate:            envFloat("RATE_LIMIT_KEY_RATE", 1000),
		KeyBurst:           envFloat("RATE_LIMIT_KEY_BURST", 5000),
		AddrRate:           envFloat("RATE_LIMIT_ADDR_RATE", 10),
		AddrBurst:          envFloat("RATE_LIMIT_ADDR_BURST", 20),
		SweepInterval:      envDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
		BucketStaleAge:     envDuration("RATE_LIMIT_STALE_AGE", 10*time.Minute),
		BufferMax:          envInt("WRITER_BUFFER_MAX", 50000),
		FlushSize:          envInt("WRITER_FLUSH_SIZE", 500),
		FlushInterval:      envDuration("WRITER_FLUSH_INTERVAL", time.Second),
		MaxBodyBytes:       int64(envInt("MAX_BODY_BYTES", 500*1024)),
		MaxEventBytes:      envInt("MAX_EVENT_BYTES", 50*1024),
		MaxNameChars:       envInt("MAX_NAME_CHARS", 256),
		MaxUserIDChars:     envInt("MAX_USER_ID_CHARS", 256),
		MaxTraceChars:      envInt("MAX_TRACE_CHARS", 128),
		MaxSessionChars:    envInt("MAX_SESSION_CHARS", 128),
		MetadataLimit:      envInt("METADATA_LIMIT_BYTES", 10*1024),
		TraitsLimit:        envInt("TRAITS_LIMIT_BYTES", 5*1024),
		ToolInputLimit:     envInt("TOOL_INPUT_LIMIT_BYTES", 5*1024),
		IntentLimit:        envInt("INTENT_LIMIT_BYTES", 2*1024),
		ErrorMessageLimit:  envInt("ERROR_MESSAGE_LIMIT_BYTES", 1024),
	}

	if cfg.DBURL == "" {
		return Config{}, errors.New("DB_URL required")
	}
	if cfg.ClickHouseURL == "" {
		return Config{}, errors.New("CLICKHOUSE_URL required")
	}
	if cfg.KeyLookupSecret == "" {
		return Config{}, errors.New("KEY_LOOKUP_SECRET required")
	}
	if cfg.TokenSigningSecret == "" {
		return Config{}, errors.New("TOKEN_SIGNING_SECRET required")
	}

	switch cfg.RateLimitMode {
	case "memory", "off":
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL required when RATE_LIMIT_MODE=redis")
		}
	default:
		return Config{}, fmt.Errorf("RATE_LIMIT_MODE must be memory, redis or off, got %q", cfg.RateLimitMode)
	}

	return cfg, nil
}

func envStr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(name string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
