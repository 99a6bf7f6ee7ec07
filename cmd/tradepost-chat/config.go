// ABOUTME: Configuration loading for the tradepost-chat TUI.
// ABOUTME: Loads TOML config from XDG path with environment variable expansion.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tradepost-app/tradepost-chat/internal/config"
)

type tuiConfig struct {
	API     apiConfig     `toml:"api"`
	Chat    chatConfig    `toml:"chat"`
	Logging loggingConfig `toml:"logging"`
}

type apiConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

type chatConfig struct {
	UserID string `toml:"user_id"`
}

type loggingConfig struct {
	Level string `toml:"level"`
}

// getConfigPath returns the path to the TUI config file.
// Priority: TRADEPOST_CONFIG env var > XDG_CONFIG_HOME/tradepost/chat.toml > ~/.config/tradepost/chat.toml
func getConfigPath() string {
	if envPath := os.Getenv("TRADEPOST_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chat.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tradepost", "chat.toml")
}

// loadConfig reads the TOML config when present. A missing file is fine;
// flags and env vars can supply everything.
func loadConfig(path string) (*tuiConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &tuiConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg tuiConfig
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// engineConfig builds the engine configuration from the TOML file and flag
// overrides. Flags win over the file.
func (c *tuiConfig) engineConfig(serverFlag, tokenFlag string) (*config.Config, error) {
	cfg := config.Default()
	cfg.API.BaseURL = c.API.BaseURL
	cfg.API.Token = c.API.Token
	if serverFlag != "" {
		cfg.API.BaseURL = serverFlag
	}
	if tokenFlag != "" {
		cfg.API.Token = tokenFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
