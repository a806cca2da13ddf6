// Package config loads and validates the seismograph configuration. Every
// tunable the engine honors is listed here explicitly; there are no hidden
// constants in UI layers or globals.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tectoniq/seismograph/internal/backtest"
	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/domain/hysteresis"
)

// Config is the root configuration document.
type Config struct {
	Classifier classifier.Params `yaml:"classifier" json:"classifier"`
	Hysteresis HysteresisConfig  `yaml:"hysteresis" json:"hysteresis"`
	Simulator  backtest.Config   `yaml:"simulator" json:"simulator"`
	Server     ServerConfig      `yaml:"server" json:"server"`
	Storage    StorageConfig     `yaml:"storage" json:"storage"`
	Provider   ProviderConfig    `yaml:"provider" json:"provider"`
}

// HysteresisConfig parameterizes the per-series controllers.
type HysteresisConfig struct {
	RequiredConfirmations int `yaml:"required_confirmations" json:"required_confirmations"`
}

// ServerConfig holds the HTTP server surface.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// StorageConfig holds optional persistence and cache endpoints. Empty
// values disable the collaborator.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr" json:"redis_addr"`
	RedisDB     int    `yaml:"redis_db" json:"redis_db"`
	CacheTTLSec int    `yaml:"cache_ttl_sec" json:"cache_ttl_sec"`
}

// ProviderConfig holds data-provider settings.
type ProviderConfig struct {
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	CSVDir      string  `yaml:"csv_dir" json:"csv_dir"`
	RequestsSec float64 `yaml:"requests_sec" json:"requests_sec"`
	Burst       int     `yaml:"burst" json:"burst"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Classifier: classifier.DefaultParams(),
		Hysteresis: HysteresisConfig{RequiredConfirmations: hysteresis.DefaultConfirmations},
		Simulator:  backtest.DefaultConfig(),
		Server:     ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage:    StorageConfig{CacheTTLSec: 300},
		Provider:   ProviderConfig{CSVDir: "data", RequestsSec: 2, Burst: 4},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the whole document.
func (c Config) Validate() error {
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if c.Hysteresis.RequiredConfirmations < 1 {
		return fmt.Errorf("hysteresis: required_confirmations must be >= 1, got %d", c.Hysteresis.RequiredConfirmations)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	if c.Provider.RequestsSec <= 0 || c.Provider.Burst <= 0 {
		return fmt.Errorf("provider: rate limit must be positive")
	}
	return nil
}
