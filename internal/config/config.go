package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Quote provider selection. The simulated provider is a local stand-in
// that implements the same contract as the real one.
const (
	ProviderYahoo     = "yahoo"
	ProviderSimulated = "simulated"
)

// Config holds application configuration
type Config struct {
	Port            int
	DevMode         bool
	DatabasePath    string
	LogLevel        string
	QuoteProvider   string        // yahoo | simulated
	QuoteTimeout    time.Duration // per-batch upper bound on the external call
	RefreshInterval time.Duration // fixed tick interval for the refresh scheduler
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/portfolio.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		QuoteProvider:   getEnv("QUOTE_PROVIDER", ProviderYahoo),
		QuoteTimeout:    getEnvAsDuration("QUOTE_TIMEOUT", 10*time.Second),
		RefreshInterval: getEnvAsDuration("REFRESH_INTERVAL", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.QuoteProvider != ProviderYahoo && c.QuoteProvider != ProviderSimulated {
		return fmt.Errorf("QUOTE_PROVIDER must be %q or %q, got %q",
			ProviderYahoo, ProviderSimulated, c.QuoteProvider)
	}

	if c.RefreshInterval < time.Second {
		return fmt.Errorf("REFRESH_INTERVAL must be at least 1s, got %s", c.RefreshInterval)
	}

	if c.QuoteTimeout <= 0 {
		return fmt.Errorf("QUOTE_TIMEOUT must be positive, got %s", c.QuoteTimeout)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
