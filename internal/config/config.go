package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Consumer holds the event consumer settings read from the environment.
type Consumer struct {
	Env           string `default:"production"     envconfig:"APP_ENV"`
	Store         string `default:"memory"         envconfig:"STORE"`
	RedisAddr     string `default:"localhost:6379" envconfig:"REDIS_ADDR"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	CacheTTL      int    `default:"300"            envconfig:"CACHE_TTL"`
	ConsumerGroup string `default:"registry"       envconfig:"CONSUMER_GROUP"`
	LogFormat     string `default:"json"           envconfig:"LOG_FORMAT"`
	LogLevel      string `default:"info"           envconfig:"LOG_LEVEL"`
}

var (
	validEnvs       = map[string]bool{"development": true, "test": true, "staging": true, "production": true}
	validStores     = map[string]bool{"memory": true, "redis": true, "postgres": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks the consumer settings for consistency.
func (c *Consumer) Validate() error {
	if !validEnvs[c.Env] {
		return fmt.Errorf("invalid APP_ENV: %q", c.Env)
	}

	if !validStores[c.Store] {
		return fmt.Errorf("invalid STORE: %q", c.Store)
	}

	if c.Store == "postgres" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required when STORE is postgres")
	}

	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %d", c.CacheTTL)
	}

	if c.ConsumerGroup == "" {
		return errors.New("CONSUMER_GROUP is required")
	}

	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid LOG_FORMAT: %q", c.LogFormat)
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.LogLevel)
	}

	return nil
}

// LoadConsumer reads the consumer settings. In development and test a .env
// file in the working directory is loaded first, if present.
func LoadConsumer() (*Consumer, error) {
	loadDotEnv()

	var cfg Consumer
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process consumer config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer config: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv() {
	env := os.Getenv("APP_ENV")
	if env != "development" && env != "test" {
		return
	}

	// A missing file is fine; variables may come from the real environment.
	_ = godotenv.Load()
}
