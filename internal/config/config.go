// Package config loads the monexa CLI configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage backends for the credential record
const (
	StorageFS        = "fs"
	StorageRedis     = "redis"
	StoragePostgres  = "postgres"
	StorageDatastore = "datastore"
)

// Config is the root CLI configuration.
// Sources, highest priority first:
//  1. the path given with --config;
//  2. the path in MONEXA_CONFIG;
//  3. environment variables (a .env file in the working directory is loaded first).
//
// Environment variables are always applied on top of the file.
type Config struct {
	BaseURL          string        `yaml:"base_url" env:"MONEXA_BASE_URL" env-default:"http://localhost:9000/api/v1"`
	LogLevel         string        `yaml:"log_level" env:"MONEXA_LOG_LEVEL" env-default:"warn"`
	RefreshThreshold time.Duration `yaml:"refresh_threshold" env:"MONEXA_REFRESH_THRESHOLD" env-default:"24h"`
	RenewTimeout     time.Duration `yaml:"renew_timeout" env:"MONEXA_RENEW_TIMEOUT" env-default:"30s"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"MONEXA_REQUEST_TIMEOUT" env-default:"30s"`
	Storage          StorageConfig `yaml:"storage"`
}

// StorageConfig selects where credentials are kept
type StorageConfig struct {
	Kind string `yaml:"kind" env:"MONEXA_STORAGE" env-default:"fs"`

	// Profile separates credential sets in shared backends
	Profile string `yaml:"profile" env:"MONEXA_PROFILE" env-default:"default"`

	// FSPath overrides the credentials file location (fs)
	FSPath string `yaml:"fs_path" env:"MONEXA_CREDENTIALS_FILE"`

	RedisURL    string `yaml:"redis_url" env:"MONEXA_REDIS_URL" env-default:"redis://localhost:6379/0"`
	PostgresDSN string `yaml:"postgres_dsn" env:"MONEXA_POSTGRES_DSN"`

	DatastoreProject   string `yaml:"datastore_project" env:"MONEXA_DATASTORE_PROJECT"`
	DatastoreNamespace string `yaml:"datastore_namespace" env:"MONEXA_DATASTORE_NAMESPACE"`
}

// Validate checks the values cleanenv cannot express
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.RefreshThreshold < 0 {
		return fmt.Errorf("refresh_threshold must not be negative")
	}
	switch c.Storage.Kind {
	case StorageFS, StorageRedis:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres storage")
		}
	case StorageDatastore:
		if c.Storage.DatastoreProject == "" {
			return fmt.Errorf("storage.datastore_project is required for datastore storage")
		}
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}
	return nil
}

// MustLoad is Load that panics on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. An empty path falls back to MONEXA_CONFIG
// and then to the environment alone.
func Load(path string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("MONEXA_CONFIG")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		// ReadConfig overlays the environment after the file
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
