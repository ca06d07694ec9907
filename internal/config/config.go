package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/apexhub/gateway/internal/models"
)

// Config holds all configuration for the gateway process.
type Config struct {
	Port            string
	Scope           string // visibility scope this instance serves
	DatabaseURL     string
	RedisURL        string // optional; enables shared rate-limit counters
	AllowedOrigins  []string
	DefaultRequests int
	DefaultPeriodMs int64
	MaxBodyBytes    int64
	UpstreamTimeout time.Duration
	// TrustProxyHeaders enables X-Forwarded-For/X-Real-IP as the client
	// address. Off unless a trusted proxy fronts this instance.
	TrustProxyHeaders bool
	LogLevel          string
}

// Load reads configuration from environment variables. A .env file is loaded
// first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Scope:       getEnv("GATEWAY_SCOPE", models.VisibilityPublic),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Scope != models.VisibilityPublic && cfg.Scope != models.VisibilityPrivate {
		return nil, fmt.Errorf("GATEWAY_SCOPE must be %q or %q, got %q",
			models.VisibilityPublic, models.VisibilityPrivate, cfg.Scope)
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.DefaultRequests, err = getEnvInt("DEFAULT_RATE_LIMIT_REQUESTS", 100); err != nil {
		return nil, err
	}
	if cfg.DefaultPeriodMs, err = getEnvInt64("DEFAULT_RATE_LIMIT_PERIOD_MS", 3600000); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes, err = getEnvInt64("MAX_BODY_BYTES", 10<<20); err != nil {
		return nil, err
	}
	if cfg.TrustProxyHeaders, err = getEnvBool("TRUST_PROXY_HEADERS", false); err != nil {
		return nil, err
	}

	timeoutSec, err := getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.UpstreamTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

// DefaultSpec returns the fallback rate-limit spec for keys and callers with
// no configured quota.
func (c *Config) DefaultSpec() models.RateLimitSpec {
	return models.RateLimitSpec{Requests: c.DefaultRequests, PeriodMs: c.DefaultPeriodMs}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	return b, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}
