// ABOUTME: Tests for configuration loading, env expansion, and validation.
// ABOUTME: Covers duration parsing, defaults, and required-field errors.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://market.example.com"
  token: "tok-123"
connection:
  establish_timeout: "2s"
  heartbeat_interval: "10s"
  backoff_base: "500ms"
  backoff_cap: "8s"
  max_attempts: 3
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://market.example.com", cfg.API.BaseURL)
	assert.Equal(t, "tok-123", cfg.API.Token)
	assert.Equal(t, 2*time.Second, cfg.Connection.EstablishTimeout)
	assert.Equal(t, 10*time.Second, cfg.Connection.HeartbeatInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Connection.BackoffBase)
	assert.Equal(t, 8*time.Second, cfg.Connection.BackoffCap)
	assert.Equal(t, 3, cfg.Connection.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "http://localhost:8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultEstablishTimeout, cfg.Connection.EstablishTimeout)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.Connection.HeartbeatInterval)
	assert.Equal(t, DefaultBackoffBase, cfg.Connection.BackoffBase)
	assert.Equal(t, DefaultBackoffCap, cfg.Connection.BackoffCap)
	assert.Equal(t, DefaultMaxAttempts, cfg.Connection.MaxAttempts)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_CHAT_TOKEN", "secret-token")
	path := writeConfig(t, `
api:
  base_url: "http://localhost:8080"
  token: "${TEST_CHAT_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.API.Token)
}

func TestLoad_MissingBaseURLFails(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "info"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestLoad_RejectsNonHTTPScheme(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "ftp://example.com"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestLoad_BadDurationFails(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "http://localhost:8080"
connection:
  heartbeat_interval: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefault_IsValidOnceBaseURLSet(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "http://localhost:9000"
	assert.NoError(t, cfg.Validate())
}
