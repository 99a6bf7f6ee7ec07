// Package config loads the engine configuration from YAML.
//
// Example:
//
//	api:
//	  base_url: "https://market.example.com"
//	  token: "${TRADEPOST_TOKEN}"
//	connection:
//	  establish_timeout: "5s"
//	  heartbeat_interval: "30s"
//	  backoff_base: "1s"
//	  backoff_cap: "30s"
//	  max_attempts: 5
//	logging:
//	  level: "info"
//	  format: "text"
//
// ${VAR} references are expanded from the environment before parsing.
// Unset timing fields fall back to the package defaults.
package config
