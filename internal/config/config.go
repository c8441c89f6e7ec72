// Package config loads weft configuration from a JSON file with environment
// variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Driver selects the storage backend.
type Driver string

const (
	DriverBolt     Driver = "bolt"
	DriverPostgres Driver = "postgres"
)

// Config holds all weft settings.
type Config struct {
	Store  StoreConfig  `json:"store"`
	Server ServerConfig `json:"server"`
}

// StoreConfig selects and parameterizes the storage backend.
type StoreConfig struct {
	Driver      Driver `json:"driver"`
	BoltPath    string `json:"bolt_path,omitempty"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Listen         string   `json:"listen"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// Default returns a config with sensible defaults: a local bolt file and a
// localhost listener.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:   DriverBolt,
			BoltPath: "weft.db",
		},
		Server: ServerConfig{
			Listen:         "127.0.0.1:8673",
			AllowedOrigins: []string{"*"},
		},
	}
}

// DefaultPath returns the config file location: $WEFT_CONFIG if set,
// otherwise ~/.config/weft/config.json.
func DefaultPath() (string, error) {
	if p := os.Getenv("WEFT_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "weft", "config.json"), nil
}

// Load reads the config at path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WEFT_STORE_DRIVER"); v != "" {
		c.Store.Driver = Driver(v)
	}
	if v := os.Getenv("WEFT_BOLT_PATH"); v != "" {
		c.Store.BoltPath = v
	}
	if v := os.Getenv("WEFT_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("WEFT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
}

// Validate checks the store selection is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverBolt:
		if c.Store.BoltPath == "" {
			return fmt.Errorf("store.bolt_path must be set for the bolt driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
