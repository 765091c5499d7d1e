// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string // empty disables interaction logging

	Azure AzureConfig

	ProcessingTimeout time.Duration
	SweepInterval     time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// AzureConfig holds Azure OpenAI settings.
type AzureConfig struct {
	APIKey     string
	APIBase    string
	Deployment string
	Model      string
	APIVersion string
}

// Configured reports whether the required provider credentials are set.
func (a AzureConfig) Configured() bool {
	return a.APIKey != "" && a.APIBase != "" && a.Deployment != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		DBPath:            getEnv("DB_PATH", ""),
		ProcessingTimeout: getEnvDuration("PROCESSING_TIMEOUT", 5*time.Minute),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RetryDelay:        getEnvDuration("RETRY_DELAY", time.Second),
		Azure: AzureConfig{
			APIKey:     getEnv("AZURE_API_KEY", ""),
			APIBase:    getEnv("AZURE_API_BASE", ""),
			Deployment: getEnv("DEPLOYMENT_NAME", ""),
			Model:      getEnv("MODEL_NAME", "gpt-35-turbo"),
			APIVersion: getEnv("AZURE_API_VERSION", "2024-05-01-preview"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("RETRY_DELAY must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("90s", "5m") and, for
// compatibility with older deployments, bare millisecond integers.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
