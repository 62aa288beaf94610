package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the YAML configuration file.
func LoadConfig(filename string) (*Config, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}
	return ParseConfig(fileBytes, filename)
}

// ParseConfig parses and validates configuration bytes. The name is only used in messages.
func ParseConfig(data []byte, name string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", name, err)
	}

	// Minimal defaults before validation
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = 1
	}
	if config.Retry.Backoff <= 0 {
		config.Retry.Backoff = 1
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Transport.TimeoutMs <= 0 {
		config.Transport.TimeoutMs = 30000
	}
	if config.Store.Dir == "" {
		config.Store.Dir = ".apimapper/templates"
	}
	if config.Server.Addr == "" {
		config.Server.Addr = "127.0.0.1:8089"
	}
	for name, rc := range config.Requests {
		ApplyRequestDefaults(&rc)
		config.Requests[name] = rc
	}

	if err := ValidateConfigManually(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
