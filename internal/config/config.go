// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the sync daemon.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the control HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string for the local trip store. Required.
	DatabaseURL string

	// RemoteBaseURL is the base URL of the remote trip service. Required.
	RemoteBaseURL string

	// RemoteAPIToken is the bearer token presented to the remote service.
	// Empty is allowed at load time; sync passes then fail with an auth error.
	RemoteAPIToken string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// RequestTimeout bounds each individual remote request attempt.
	// Set REQUEST_TIMEOUT_SECONDS to override the 15s default.
	RequestTimeout time.Duration

	// MaxRetryAttempts is the total number of tries for a retryable remote
	// operation, first attempt included. Defaults to 3.
	MaxRetryAttempts int

	// RetryDelay is the fixed pause between retry attempts.
	// Set RETRY_DELAY_MS to override the 500ms default.
	RetryDelay time.Duration

	// SyncInterval is the period of the background sync loop.
	// Zero disables periodic syncing; passes then run only on demand.
	// Set SYNC_INTERVAL_MINUTES to override the 15m default.
	SyncInterval time.Duration

	// PushWorkers bounds how many records are pushed in parallel. Defaults to 4.
	PushWorkers int
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first numeric variable that fails to parse.
func Load() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		RemoteAPIToken: os.Getenv("REMOTE_API_TOKEN"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RemoteBaseURL = os.Getenv("REMOTE_BASE_URL")
	if cfg.RemoteBaseURL == "" {
		missing = append(missing, "REMOTE_BASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.RequestTimeout, err = getSeconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetryAttempts, err = getInt("MAX_RETRY_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.RetryDelay, err = getMillis("RETRY_DELAY_MS", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.SyncInterval, err = getMinutes("SYNC_INTERVAL_MINUTES", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.PushWorkers, err = getInt("PUSH_WORKERS", 4); err != nil {
		return Config{}, err
	}

	if cfg.MaxRetryAttempts < 1 {
		return Config{}, fmt.Errorf("MAX_RETRY_ATTEMPTS must be at least 1, got %d", cfg.MaxRetryAttempts)
	}
	if cfg.PushWorkers < 1 {
		return Config{}, fmt.Errorf("PUSH_WORKERS must be at least 1, got %d", cfg.PushWorkers)
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt parses the environment variable named by key as an integer,
// returning fallback when the variable is unset or empty.
func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", key, v)
	}
	return n, nil
}

func getSeconds(key string, fallback time.Duration) (time.Duration, error) {
	n, err := getInt(key, int(fallback/time.Second))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: must be a non-negative number of seconds: %q", key, os.Getenv(key))
	}
	return time.Duration(n) * time.Second, nil
}

func getMillis(key string, fallback time.Duration) (time.Duration, error) {
	n, err := getInt(key, int(fallback/time.Millisecond))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: must be a non-negative number of milliseconds: %q", key, os.Getenv(key))
	}
	return time.Duration(n) * time.Millisecond, nil
}

func getMinutes(key string, fallback time.Duration) (time.Duration, error) {
	n, err := getInt(key, int(fallback/time.Minute))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: must be a non-negative number of minutes: %q", key, os.Getenv(key))
	}
	return time.Duration(n) * time.Minute, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
