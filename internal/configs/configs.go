/*
Package configs loads the settings of both chitchat binaries.

The server reads operating system environment variables. The client layers an optional
TOML file, CHITCHAT_* environment variables and finally command line flags.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort         = 8080
	DefaultHistoryLimit = 100
	DefaultChannelIdle  = 5 * time.Minute
)

// AppConfig contains all configuration parameters required for the server to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string

	// Chat Settings
	HistoryLimit       int
	ChannelIdleTimeout time.Duration

	// Database Settings; empty keeps history in memory.
	DatabaseDSN string
}

// IsDevelopment reports whether the server runs with relaxed origin checks and console logging.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the server configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
func LoadConfig() (*AppConfig, error) {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intFromEnv(getenv, "PORT", DefaultPort)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = splitList(getenv("ALLOWED_ORIGINS"))

	jwtSecret := getenv("JWT_SECRET")
	if jwtSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		jwtSecret = "your_default_insecure_secret_key_change_me"
	}
	cfg.JWTSecret = jwtSecret

	// --- Chat Settings ---
	limit, err := intFromEnv(getenv, "HISTORY_LIMIT", DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", limit)
	}
	cfg.HistoryLimit = limit

	cfg.ChannelIdleTimeout = DefaultChannelIdle
	if raw := getenv("CHANNEL_IDLE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CHANNEL_IDLE_TIMEOUT environment variable: %q", raw)
		}
		cfg.ChannelIdleTimeout = d
	}

	// --- Database Settings ---
	cfg.DatabaseDSN = getenv("DATABASE_URL")

	return cfg, nil
}

func intFromEnv(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}

	return v, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
