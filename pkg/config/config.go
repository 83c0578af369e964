package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment         string
	ServerPort          int
	DatabaseURL         string
	RedisURL            string
	LogLevel            string
	CORSAllowedOrigins  []string
	HashSalt            string
	TokenSecret         string
	TokenIssuer         string
	TokenTTL            time.Duration
	OrphanSweepInterval time.Duration
	ShutdownGracePeriod time.Duration
}

// Load reads configuration from environment variables. The hashing salt and
// token secret are required; each may be supplied directly or through a
// *_FILE variable pointing at a file, so secrets can be mounted rather than
// passed in the environment.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	sweepInterval, err := time.ParseDuration(getEnv("ORPHAN_SWEEP_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORPHAN_SWEEP_INTERVAL: %w", err)
	}

	grace, err := time.ParseDuration(getEnv("SHUTDOWN_GRACE_PERIOD", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_GRACE_PERIOD: %w", err)
	}

	salt, err := getSecret("HASH_SALT")
	if err != nil {
		return nil, err
	}

	secret, err := getSecret("TOKEN_SECRET")
	if err != nil {
		return nil, err
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/cohort?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		HashSalt:            salt,
		TokenSecret:         secret,
		TokenIssuer:         getEnv("TOKEN_ISSUER", "cohort"),
		TokenTTL:            tokenTTL,
		OrphanSweepInterval: sweepInterval,
		ShutdownGracePeriod: grace,
	}, nil
}

// getSecret resolves KEY or KEY_FILE, in that order. A missing secret is a
// startup error: the server must never fall back to a default salt or
// signing key.
func getSecret(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s_FILE: %w", key, err)
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return "", fmt.Errorf("%s_FILE %q is empty", key, path)
		}
		return value, nil
	}

	return "", fmt.Errorf("%s or %s_FILE must be set", key, key)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
