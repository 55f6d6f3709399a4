package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	// ConfigFile is the client config file name inside Home.
	ConfigFile = "config.yaml"

	DefaultRelayURL    = "http://127.0.0.1:8080"
	DefaultLogLevel    = "info"
	DefaultHTTPTimeout = 15 * time.Second
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home        string        `yaml:"-"`            // config directory, e.g. $HOME/.cipherchat
	RelayURL    string        `yaml:"relay_url"`    // relay base URL, e.g. http://127.0.0.1:8080
	Username    string        `yaml:"username"`     // default identity label
	LogLevel    string        `yaml:"log_level"`    // logrus level name
	HTTPTimeout time.Duration `yaml:"http_timeout"` // per-request timeout, e.g. 15s
	HTTP        *http.Client  `yaml:"-"`            // optional; built from HTTPTimeout otherwise
}

// DefaultConfig returns the configuration used when home has no config file.
func DefaultConfig(home string) Config {
	return Config{
		Home:        home,
		RelayURL:    DefaultRelayURL,
		LogLevel:    DefaultLogLevel,
		HTTPTimeout: DefaultHTTPTimeout,
	}
}

// LoadConfig reads home/config.yaml. A missing file yields the defaults;
// fields absent from the file keep their default values.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	b, err := os.ReadFile(filepath.Join(home, ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	cfg.Home = home
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.RelayURL == "" {
		return errors.New("relay_url must not be empty")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	return nil
}

// httpClient returns c.HTTP or a client bounded by HTTPTimeout.
func (c Config) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: c.HTTPTimeout}
}
