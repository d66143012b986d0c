package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServerURL      = "http://localhost:8080"
	DefaultRequestTimeout = 10 * time.Second
	DefaultSlowAfter      = 2 * time.Second
	DefaultMaxReconnects  = 10

	appDirName = "chitchat"
)

// ClientConfig holds settings for the chitchat command line client.
type ClientConfig struct {
	Environment    string        `toml:"environment"`
	ServerURL      string        `toml:"server_url"`
	TokenFile      string        `toml:"token_file"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	SlowAfter      time.Duration `toml:"slow_after"`
	// MaxReconnects bounds consecutive reconnect attempts; 0 retries forever.
	MaxReconnects int `toml:"max_reconnects"`
}

// IsDevelopment reports whether the client logs at debug level to the console.
func (c *ClientConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// DefaultClientConfig returns the built-in client settings.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Environment:    "production",
		ServerURL:      DefaultServerURL,
		TokenFile:      filepath.Join(configDir(), "token"),
		RequestTimeout: DefaultRequestTimeout,
		SlowAfter:      DefaultSlowAfter,
		MaxReconnects:  DefaultMaxReconnects,
	}
}

// DefaultClientConfigPath is where LoadClientConfig looks when no path is given.
func DefaultClientConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName)
	}
	return "." + appDirName
}

// LoadClientConfig merges defaults, the TOML file at path (missing is fine) and CHITCHAT_*
// environment variables. An empty path means DefaultClientConfigPath.
func LoadClientConfig(path string) (*ClientConfig, error) {
	return loadClientConfig(path, os.Getenv)
}

func loadClientConfig(path string, getenv func(string) string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path == "" {
		path = DefaultClientConfigPath()
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if v := getenv("CHITCHAT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := getenv("CHITCHAT_TOKEN_FILE"); v != "" {
		cfg.TokenFile = v
	}
	if v := getenv("CHITCHAT_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings after flags have been applied.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", c.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server url %q must use http or https", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server url %q has no host", c.ServerURL)
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")

	if c.TokenFile == "" {
		return errors.New("token file path is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.SlowAfter <= 0 {
		c.SlowAfter = DefaultSlowAfter
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("max reconnects must not be negative, got %d", c.MaxReconnects)
	}

	return nil
}
