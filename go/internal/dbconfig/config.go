// Package dbconfig resolves Postgres connection settings for the
// press store from DB_* environment variables.
package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// PoolMaxConns caps the pgx pool. Zero leaves the pool default.
	PoolMaxConns int
}

// FromEnv reads DB_* environment variables, falling back to local
// development defaults.
func FromEnv() Config {
	return Config{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnvInt("DB_PORT", 5432),
		User:         getEnv("DB_USER", "pressatlas"),
		Password:     getEnv("DB_PASSWORD", "pressatlas"),
		Database:     getEnv("DB_NAME", "pressatlas"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		PoolMaxConns: getEnvInt("DB_POOL_MAX_CONNS", 0),
	}
}

// DSN returns the Postgres connection URL, including pool sizing when
// configured.
func (c Config) DSN() string {
	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	if c.PoolMaxConns > 0 {
		query.Set("pool_max_conns", strconv.Itoa(c.PoolMaxConns))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
