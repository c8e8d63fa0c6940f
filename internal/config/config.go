// Package config provides configuration management for the property
// enrichment gateway. It loads settings from environment variables with
// sensible defaults and validates them before the service starts.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// REST address-search provider (provider-A):
//   - PARCELAPI_BASE_URL: Provider base URL (required)
//   - PARCELAPI_TOKEN_URL: OAuth2 token endpoint (required)
//   - PARCELAPI_CLIENT_ID / PARCELAPI_CLIENT_SECRET: client credentials (required)
//   - PARCELAPI_FEED_ID: feed identifier sent with every search
//
// Legacy async title-data provider (provider-B):
//   - TITLEWIRE_BASE_URL: Provider base URL
//   - TITLEWIRE_USER_ID / TITLEWIRE_PASSWORD: provider credentials
//   - TITLEWIRE_SERVICE_ID: service identifier for create-request calls
//   - MAX_WAIT_SECONDS: overall wait budget for the async protocol (default: 20)
//   - POLL_INTERVAL_SECONDS: status poll interval (default: 2)
//
// Token lifecycle:
//   - TOKEN_SKEW_SECONDS: refresh safety margin (default: 120)
//   - TOKEN_DEFAULT_TTL_SECONDS: lifetime assumed when the provider omits
//     expires_in (default: 600)
//
// Cache:
//   - CACHE_BACKEND: "memory" or "redis" (default: memory)
//   - CACHE_TTL: TTL for resolved property data (default: 24h)
//   - REDIS_ADDRESS / REDIS_PASSWORD / REDIS_DB: Redis settings when the
//     redis backend is selected
//
// Upstream discipline:
//   - CONCURRENCY_LIMIT: max in-flight enrichments per provider (default: 5)
//   - PROVIDER_RPS: outbound requests per second per provider (default: 10)
//   - REQUEST_TIMEOUT: per-call timeout (default: 30s)
//   - RETRY_MAX_ATTEMPTS: retry cap for transient failures (default: 3)
//   - RETRY_INITIAL_DELAY / RETRY_MAX_DELAY: backoff bounds (default: 1s / 4s)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the enrichment gateway
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// REST provider (provider-A)
	ParcelAPIBaseURL      string
	ParcelAPITokenURL     string
	ParcelAPIClientID     string
	ParcelAPIClientSecret string
	ParcelAPIFeedID       string

	// Legacy provider (provider-B)
	TitleWireBaseURL   string
	TitleWireUserID    string
	TitleWirePassword  string
	TitleWireServiceID string

	// Token lifecycle
	TokenSkew       time.Duration
	TokenDefaultTTL time.Duration

	// Async protocol budget
	MaxWait      time.Duration
	PollInterval time.Duration

	// Cache
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Upstream discipline
	ConcurrencyLimit  int
	ProviderRPS       int
	RequestTimeout    time.Duration
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// Load creates a new Config instance with values loaded from environment
// variables. Call Validate() before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ParcelAPIBaseURL:      getEnv("PARCELAPI_BASE_URL", ""),
		ParcelAPITokenURL:     getEnv("PARCELAPI_TOKEN_URL", ""),
		ParcelAPIClientID:     getEnv("PARCELAPI_CLIENT_ID", ""),
		ParcelAPIClientSecret: getEnv("PARCELAPI_CLIENT_SECRET", ""),
		ParcelAPIFeedID:       getEnv("PARCELAPI_FEED_ID", ""),

		TitleWireBaseURL:   getEnv("TITLEWIRE_BASE_URL", ""),
		TitleWireUserID:    getEnv("TITLEWIRE_USER_ID", ""),
		TitleWirePassword:  getEnv("TITLEWIRE_PASSWORD", ""),
		TitleWireServiceID: getEnv("TITLEWIRE_SERVICE_ID", ""),

		TokenSkew:       getSecondsEnv("TOKEN_SKEW_SECONDS", 120),
		TokenDefaultTTL: getSecondsEnv("TOKEN_DEFAULT_TTL_SECONDS", 600),

		MaxWait:      getSecondsEnv("MAX_WAIT_SECONDS", 20),
		PollInterval: getSecondsEnv("POLL_INTERVAL_SECONDS", 2),

		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		CacheTTL:      getDurationEnv("CACHE_TTL", 24*time.Hour),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		ConcurrencyLimit:  getIntEnv("CONCURRENCY_LIMIT", 5),
		ProviderRPS:       getIntEnv("PROVIDER_RPS", 10),
		RequestTimeout:    getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		RetryMaxAttempts:  getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getDurationEnv("RETRY_INITIAL_DELAY", time.Second),
		RetryMaxDelay:     getDurationEnv("RETRY_MAX_DELAY", 4*time.Second),
	}
}

// getEnv retrieves an environment variable value or returns a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable or returns a default
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getSecondsEnv retrieves an integer seconds value as a duration
func getSecondsEnv(key string, defaultSeconds int) time.Duration {
	return time.Duration(getIntEnv(key, defaultSeconds)) * time.Second
}

// getDurationEnv retrieves a duration environment variable ("30s", "24h")
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, value ranges and cross-field
// dependencies. Call after Load and before starting the service.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.ParcelAPIBaseURL == "" {
		return fmt.Errorf("PARCELAPI_BASE_URL is required")
	}
	if c.ParcelAPITokenURL == "" {
		return fmt.Errorf("PARCELAPI_TOKEN_URL is required")
	}
	if c.ParcelAPIClientID == "" || c.ParcelAPIClientSecret == "" {
		return fmt.Errorf("PARCELAPI_CLIENT_ID and PARCELAPI_CLIENT_SECRET are required")
	}

	// The legacy provider is optional; when configured it must be complete
	if c.TitleWireBaseURL != "" {
		if c.TitleWireUserID == "" || c.TitleWirePassword == "" {
			return fmt.Errorf("TITLEWIRE_USER_ID and TITLEWIRE_PASSWORD are required when TITLEWIRE_BASE_URL is set")
		}
		if c.TitleWireServiceID == "" {
			return fmt.Errorf("TITLEWIRE_SERVICE_ID is required when TITLEWIRE_BASE_URL is set")
		}
	}

	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'memory' or 'redis'")
	}

	if c.CacheBackend == "redis" {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when using the redis cache backend")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.TokenSkew <= 0 {
		return fmt.Errorf("TOKEN_SKEW_SECONDS must be positive")
	}
	if c.TokenSkew >= c.TokenDefaultTTL {
		return fmt.Errorf("TOKEN_SKEW_SECONDS must be smaller than TOKEN_DEFAULT_TTL_SECONDS")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if c.MaxWait < c.PollInterval {
		return fmt.Errorf("MAX_WAIT_SECONDS must be at least POLL_INTERVAL_SECONDS")
	}

	if c.ConcurrencyLimit < 1 {
		return fmt.Errorf("CONCURRENCY_LIMIT must be a positive number")
	}
	if c.ProviderRPS < 1 {
		return fmt.Errorf("PROVIDER_RPS must be a positive number")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be a positive number")
	}

	return nil
}

// LegacyEnabled reports whether the legacy provider is configured
func (c *Config) LegacyEnabled() bool {
	return c.TitleWireBaseURL != ""
}
