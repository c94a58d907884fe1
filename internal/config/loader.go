package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables.
// Environment variables take precedence over the file; the core
// components only ever see the resulting validated Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	// Store configuration
	if projectID := os.Getenv("DAIG_PROJECT_ID"); projectID != "" {
		cfg.Store.ProjectID = projectID
	}
	if addr := os.Getenv("DAIG_STORE_ADDR"); addr != "" {
		cfg.Store.Addr = addr
	}
	if credentials := os.Getenv("DAIG_STORE_CREDENTIALS"); credentials != "" {
		cfg.Store.CredentialsPath = credentials
	}
	if emulator := os.Getenv("DAIG_USE_EMULATOR"); emulator != "" {
		if b, err := strconv.ParseBool(emulator); err == nil {
			cfg.Store.UseEmulator = b
		}
	}
	if host := os.Getenv("DAIG_EMULATOR_HOST"); host != "" {
		cfg.Store.EmulatorHost = host
	}

	// Metrics configuration
	if port := os.Getenv("METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}

	// API configuration
	if port := os.Getenv("API_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.API.Port = p
		}
	}

	// Logging configuration
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
