package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config holds application configuration values, read from MEDEASY_* environment variables.
type Config struct {
	Secret      string `envconfig:"SECRET" default:"dev_secret"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"medeasy.db"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	LowStockThreshold int64         `envconfig:"LOW_STOCK_THRESHOLD" default:"20"`
	ExpiringWindow    time.Duration `envconfig:"EXPIRING_WINDOW" default:"2160h"`
	ApplyTimeout      time.Duration `envconfig:"APPLY_TIMEOUT" default:"5s"`

	SeedCSV string `envconfig:"SEED_CSV"`
}

const envPrefix = "MEDEASY"

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read configuration")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return errors.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.LowStockThreshold < 0 {
		return errors.New("LOW_STOCK_THRESHOLD must not be negative")
	}
	if c.ExpiringWindow < 0 {
		return errors.New("EXPIRING_WINDOW must not be negative")
	}
	if c.ApplyTimeout <= 0 {
		return errors.New("APPLY_TIMEOUT must be positive")
	}
	return nil
}
