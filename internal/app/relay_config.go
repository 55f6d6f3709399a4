package app

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"cipherchat/internal/relay/server"
)

// RelayConfig configures cmd/relay.
type RelayConfig struct {
	Listen       string `yaml:"listen"`         // listen address, default :8080
	DataDir      string `yaml:"data_dir"`       // badger directory; empty keeps state in memory
	LogLevel     string `yaml:"log_level"`      // logrus level name
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // request body limit
}

// DefaultRelayConfig is an in-memory relay on :8080.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Listen:       ":8080",
		LogLevel:     DefaultLogLevel,
		MaxBodyBytes: server.DefaultMaxBodyBytes,
	}
}

// LoadRelayConfig reads path. An empty path or a missing file yields the
// defaults.
func LoadRelayConfig(path string) (RelayConfig, error) {
	cfg := DefaultRelayConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Listen == "" {
		return cfg, errors.New("listen must not be empty")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, fmt.Errorf("max_body_bytes must be positive, got %d", cfg.MaxBodyBytes)
	}
	return cfg, nil
}
