// ABOUTME: Configuration loading and parsing for the Tradepost chat engine.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied where the file leaves a field unset.
const (
	DefaultEstablishTimeout  = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBackoffBase       = time.Second
	DefaultBackoffCap        = 30 * time.Second
	DefaultMaxAttempts       = 5
)

// Config represents the complete chat engine configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig holds the backend endpoint configuration
type APIConfig struct {
	// BaseURL is the REST base URL; the streaming scheme (ws/wss) is
	// derived from its scheme.
	BaseURL string `yaml:"base_url"`
	// Token is the identity provider access token, used when the caller
	// does not pass an explicit user id.
	Token string `yaml:"token"`
}

// ConnectionConfig holds streaming connection timing configuration
type ConnectionConfig struct {
	EstablishTimeout  time.Duration `yaml:"-"`
	HeartbeatInterval time.Duration `yaml:"-"`
	BackoffBase       time.Duration `yaml:"-"`
	BackoffCap        time.Duration `yaml:"-"`
	MaxAttempts       int           `yaml:"max_attempts"`

	// Raw string values for YAML unmarshaling
	EstablishTimeoutRaw  string `yaml:"establish_timeout"`
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	BackoffBaseRaw       string `yaml:"backoff_base"`
	BackoffCapRaw        string `yaml:"backoff_cap"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with all timing fields at their defaults and no
// endpoint set. Callers must fill in API.BaseURL.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Connection.MaxAttempts < 0 {
		return fmt.Errorf("connection.max_attempts must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Connection.EstablishTimeout == 0 {
		c.Connection.EstablishTimeout = DefaultEstablishTimeout
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.BackoffBase == 0 {
		c.Connection.BackoffBase = DefaultBackoffBase
	}
	if c.Connection.BackoffCap == 0 {
		c.Connection.BackoffCap = DefaultBackoffCap
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Connection.EstablishTimeoutRaw != "" {
		cfg.Connection.EstablishTimeout, err = time.ParseDuration(cfg.Connection.EstablishTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing establish_timeout %q: %w", cfg.Connection.EstablishTimeoutRaw, err)
		}
	}

	if cfg.Connection.HeartbeatIntervalRaw != "" {
		cfg.Connection.HeartbeatInterval, err = time.ParseDuration(cfg.Connection.HeartbeatIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_interval %q: %w", cfg.Connection.HeartbeatIntervalRaw, err)
		}
	}

	if cfg.Connection.BackoffBaseRaw != "" {
		cfg.Connection.BackoffBase, err = time.ParseDuration(cfg.Connection.BackoffBaseRaw)
		if err != nil {
			return fmt.Errorf("parsing backoff_base %q: %w", cfg.Connection.BackoffBaseRaw, err)
		}
	}

	if cfg.Connection.BackoffCapRaw != "" {
		cfg.Connection.BackoffCap, err = time.ParseDuration(cfg.Connection.BackoffCapRaw)
		if err != nil {
			return fmt.Errorf("parsing backoff_cap %q: %w", cfg.Connection.BackoffCapRaw, err)
		}
	}

	return nil
}
