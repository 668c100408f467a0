// Package daemon holds the service configuration, loaded from
// ~/.favorbank/config.toml (or $FAVORBANK_HOME/config.toml).
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Fees     FeesConfig     `toml:"fees"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// FeesConfig configures the fee computation engine.
type FeesConfig struct {
	// Timezone is the IANA zone whose wall clock decides peak-hour and
	// weekend surcharges, e.g. "America/New_York". Empty means UTC.
	Timezone string `toml:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (f FeesConfig) Location() (*time.Location, error) {
	if f.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(f.Timezone)
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Home returns the FavorBank home directory ($FAVORBANK_HOME or ~/.favorbank).
func Home() string {
	if env := os.Getenv("FAVORBANK_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".favorbank")
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API:      APIConfig{Host: "127.0.0.1", Port: 8432},
		Database: DatabaseConfig{Path: filepath.Join(Home(), "favorbank.db")},
		Fees:     FeesConfig{Timezone: "UTC"},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// Load reads the config file at Home()/config.toml, falling back to defaults
// when the file does not exist. Unknown keys are an error.
func Load() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(Home(), "config.toml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, nil
}

// Save writes the config to Home()/config.toml.
func Save(cfg Config) error {
	if err := os.MkdirAll(Home(), 0700); err != nil {
		return fmt.Errorf("create home directory: %w", err)
	}
	path := filepath.Join(Home(), "config.toml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
