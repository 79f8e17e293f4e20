// Package config loads and validates the flashd configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values
// 2. Configuration file (flashd.toml)
// 3. Environment variables (FLASHD_ prefix)
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults first
	setDefaults(v)

	// 2. Load configuration file
	if err := loadConfigFile(v, configPath); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. Set up environment variable support
	v.SetEnvPrefix("FLASHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Unmarshal into struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = configPath

	// 5. Validate the complete configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile loads the configuration file
func loadConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return fmt.Errorf("config path cannot be empty")
	}

	v.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}

// LoadDefaultConfig loads configuration from the default location.
func LoadDefaultConfig() (*Config, error) {
	return LoadConfig(DefaultConfigPath())
}

// DefaultConfig returns the built-in defaults without reading any file.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// Defaults always unmarshal cleanly
	_ = v.Unmarshal(&config)
	return &config
}

// SaveExampleConfig saves an example configuration file
func SaveExampleConfig(configPath string) error {
	v := viper.New()

	for key, value := range generateExampleConfig() {
		v.Set(key, value)
	}

	v.SetConfigFile(configPath)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}

// generateExampleConfig generates example configuration values
func generateExampleConfig() map[string]interface{} {
	return map[string]interface{}{
		"node.data_dir": "/var/lib/flashd",

		"rpc.enabled":         true,
		"rpc.address":         "127.0.0.1:5005",
		"rpc.timeout_seconds": 30,

		"websocket.enabled": true,
		"websocket.address": "127.0.0.1:6006",

		"grpc.enabled": false,
		"grpc.address": "127.0.0.1:50061",

		"state_store.backend":     "pebble",
		"state_store.path":        "checkpoints",
		"state_store.cache_size":  4096,
		"state_store.compression": "lz4",

		"history.enabled":  false,
		"history.host":     "localhost",
		"history.port":     5432,
		"history.database": "flashd",
		"history.username": "flashd",
		"history.ssl_mode": "disable",
	}
}
