package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server's tunable surface. Values come from an optional
// YAML file, with environment variables taking precedence.
type Config struct {
	Port string `yaml:"port"`

	Oracle struct {
		Endpoint string `yaml:"endpoint"`
		Secret   string `yaml:"secret"`
		// Timeout comes from ORACLE_TIMEOUT (Go duration syntax).
		Timeout time.Duration `yaml:"-"`
	} `yaml:"oracle"`

	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"nats"`

	Store struct {
		// Timeout comes from STORE_TIMEOUT (Go duration syntax).
		Timeout time.Duration `yaml:"-"`
	} `yaml:"store"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Port = "8080"
	cfg.Oracle.Endpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	cfg.Oracle.Timeout = 10 * time.Second
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.Store.Timeout = 5 * time.Second
	return cfg
}

// loadConfig reads the YAML file at path (if present) and then applies
// environment overrides on top.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Oracle.Endpoint = getEnv("ORACLE_ENDPOINT", cfg.Oracle.Endpoint)
	cfg.Oracle.Secret = getEnv("ORACLE_SECRET", cfg.Oracle.Secret)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	if v := os.Getenv("NATS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.NATS.Enabled = enabled
		}
	}
	if v := os.Getenv("ORACLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Oracle.Timeout = d
		}
	}
	if v := os.Getenv("STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.Timeout = d
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
