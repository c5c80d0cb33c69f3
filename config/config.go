// Package config loads and validates the potshot client configuration
// from <NodeHome>/config/potshot_config.json, with embedded defaults.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "potshot_config.json"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Protocol constants
	if cfg.RevealDelayBlocks == 0 {
		cfg.RevealDelayBlocks = 1
	}
	if cfg.RevealWindowBlocks == 0 {
		cfg.RevealWindowBlocks = 256
	}
	if cfg.RevealDelayBlocks >= cfg.RevealWindowBlocks {
		return fmt.Errorf("reveal delay (%d) must be smaller than reveal window (%d)",
			cfg.RevealDelayBlocks, cfg.RevealWindowBlocks)
	}

	// Gas policy defaults
	if cfg.DefaultGasLimit == 0 {
		cfg.DefaultGasLimit = 500000
	}
	if cfg.ConfirmationTimeoutSeconds == 0 {
		cfg.ConfirmationTimeoutSeconds = 120
	}

	// Cache and retry defaults
	if cfg.CacheTTLMillis == 0 {
		cfg.CacheTTLMillis = 30000
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelayMillis == 0 {
		cfg.RetryBaseDelayMillis = 1000
	}
	if cfg.RetryBackoffFactor == 0 {
		cfg.RetryBackoffFactor = 2.0
	}

	// Ledger defaults
	if cfg.LedgerTimeoutSeconds == 0 {
		cfg.LedgerTimeoutSeconds = 10
	}

	// Query server defaults
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	// Background job defaults
	if cfg.RefreshIntervalSeconds == 0 {
		cfg.RefreshIntervalSeconds = 30
	}
	if cfg.RefreshInterCallDelayMillis == 0 {
		cfg.RefreshInterCallDelayMillis = 200
	}
	if cfg.ReconcileIntervalSeconds == 0 {
		cfg.ReconcileIntervalSeconds = 60
	}

	return nil
}

// Save writes the given config to <NodeHome>/config/potshot_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads, validates and returns the config from
// <BasePath>/config/potshot_config.json.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, configSubdir, configFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON.
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
