package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/events"
	"github.com/pressatlas/pressatlas/go/internal/gateway"
	"github.com/pressatlas/pressatlas/go/internal/metrics"
	"github.com/pressatlas/pressatlas/go/internal/press"
	"github.com/pressatlas/pressatlas/go/internal/verify"
)

// Services bundles everything the HTTP server exposes.
type Services struct {
	Gateway   *gateway.Service
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
}

// setupServices wires the dependency chain: repository, aggregator,
// oracle client, event publisher, broadcast hub.
func setupServices(pool *pgxpool.Pool, cfg Config) (*Services, error) {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	repo := press.NewRepository(pool)

	verifier := verify.NewClient(cfg.Oracle.Endpoint, cfg.Oracle.Secret, cfg.Oracle.Timeout)

	pressConfig := press.DefaultConfig()
	if cfg.Store.Timeout > 0 {
		pressConfig.StoreTimeout = cfg.Store.Timeout
	}
	pressApp := press.NewApp(repo, verifier, pressConfig).WithRecorder(m)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATS.URL
		js, err := events.NewJetStreamPublisher(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		publisher = js
		log.Info().Str("url", cfg.NATS.URL).Msg("publishing presses to event stream")
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayService, err := gateway.NewService(gatewayConfig, pressApp, verifier, publisher, m)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create gateway service: %w", err)
	}

	return &Services{
		Gateway:   gatewayService,
		Publisher: publisher,
		Metrics:   m,
		Registry:  registry,
	}, nil
}
