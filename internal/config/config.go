// Package config loads the mediadesk YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Config is the whole client configuration, one section per concern.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig points the client at the REST backend. Timeout bounds ordinary calls;
// UploadTimeout bounds multipart uploads.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Prefix        string        `yaml:"prefix"`
	Timeout       time.Duration `yaml:"timeout"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	PageSize      int           `yaml:"page_size"`
}

// StorageConfig selects where the token and live flags persist. Path is used by the
// file driver, DSN by postgres; a non-empty Passphrase seals values at rest.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	Passphrase string `yaml:"passphrase"`
}

// RealtimeConfig is the websocket endpoint used by live broadcasts.
type RealtimeConfig struct {
	URL               string        `yaml:"url"`
	Namespace         string        `yaml:"namespace"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// LogConfig sets the zap level and the console or json encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, expanding ${VAR} references after loading a .env file if one
// exists. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:3000"
	}
	if c.API.Prefix == "" {
		c.API.Prefix = "/api/v1"
	}
	if c.API.UploadTimeout == 0 {
		c.API.UploadTimeout = 10 * time.Minute
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Realtime.Namespace == "" {
		c.Realtime.Namespace = "/podcast"
	}
	if c.Realtime.ReconnectInterval == 0 {
		c.Realtime.ReconnectInterval = 2 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("api.base_url: want http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout < 0 || c.API.UploadTimeout < 0 {
		errs = append(errs, errors.New("api: timeouts must not be negative"))
	}
	if c.API.PageSize < 0 {
		errs = append(errs, errors.New("api.page_size: must be positive"))
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverFile:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn: required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver))
	}
	if c.Realtime.URL != "" {
		if u, err := url.Parse(c.Realtime.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("realtime.url: want ws(s) URL, got %q", c.Realtime.URL))
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format: want json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
