package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/dbconfig"
)

const (
	dbConnectAttempts = 5
	dbConnectBackoff  = 2 * time.Second
)

// setupDatabase opens a pgx pool and pings it with a bounded retry
// loop, so the server survives a database that comes up a little
// after it does.
func setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dbCfg := dbconfig.FromEnv()

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= dbConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = pool.Ping(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}

		log.Warn().
			Err(pingErr).
			Int("attempt", attempt).
			Int("max_attempts", dbConnectAttempts).
			Msg("database ping failed, retrying")

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(dbConnectBackoff):
		}
	}
	if pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", dbConnectAttempts, pingErr)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")

	return pool, nil
}
