package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig
	API     APIConfig
	Retry   RetryConfig
	Breaker BreakerConfig
	Cache   CacheConfig
	Weeks   WeeksConfig
}

// AppConfig holds service identity configuration
type AppConfig struct {
	ServiceName string
	Environment string
}

// APIConfig holds booking middleware client configuration
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RetryConfig holds the fixed-backoff retry schedule for middleware calls
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// BreakerConfig holds circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold int
	OpenWindow       time.Duration
}

// CacheConfig holds TTLs and sweep intervals for the slot cache
type CacheConfig struct {
	SlotTTL          time.Duration
	BookingTTL       time.Duration
	UnifiedTTL       time.Duration
	SweepInterval    time.Duration
	PastWeekInterval time.Duration
	PendingStaleness time.Duration
}

// WeeksConfig holds the week-count clamp for slot requests
type WeeksConfig struct {
	Min     int
	Max     int
	Default int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		App: AppConfig{
			ServiceName: getEnv("SERVICE_NAME", "oah-booking"),
			Environment: getEnv("APP_ENV", "development"),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:3000/api"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", time.Second),
			MaxDelay:     getEnvAsDuration("RETRY_MAX_DELAY", 4*time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			OpenWindow:       getEnvAsDuration("BREAKER_OPEN_WINDOW", 30*time.Second),
		},
		Cache: CacheConfig{
			SlotTTL:          getEnvAsDuration("CACHE_SLOT_TTL", 10*time.Minute),
			BookingTTL:       getEnvAsDuration("CACHE_BOOKING_TTL", 2*time.Minute),
			UnifiedTTL:       getEnvAsDuration("CACHE_UNIFIED_TTL", 15*time.Minute),
			SweepInterval:    getEnvAsDuration("CACHE_SWEEP_INTERVAL", 2*time.Minute),
			PastWeekInterval: getEnvAsDuration("CACHE_PAST_WEEK_INTERVAL", time.Hour),
			PendingStaleness: getEnvAsDuration("CACHE_PENDING_STALENESS", 30*time.Second),
		},
		Weeks: WeeksConfig{
			Min:     1,
			Max:     12,
			Default: getEnvAsInt("WEEKS_DEFAULT", 4),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
