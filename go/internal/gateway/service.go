package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/events"
)

// Service composes the broadcast hub, the WebSocket handler, the REST
// read projections, and (optionally) the stream consumer.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	statsHandler      *StatsHandler
	eventConsumer     *EventConsumer
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig

	// ConsumeStream attaches a JetStream consumer so this process
	// re-broadcasts presses accepted elsewhere.
	ConsumeStream   bool
	JetStreamConfig JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates the gateway service.
func NewService(config Config, pressApp PressApp, verifier ChallengeVerifier, publisher events.Publisher, metrics Recorder) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig, pressApp, publisher)
	if metrics != nil {
		connectionManager.WithRecorder(metrics)
	}

	svc := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		statsHandler:      NewStatsHandler(pressApp, verifier),
	}

	if config.ConsumeStream {
		consumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
		if err != nil {
			return nil, err
		}
		svc.eventConsumer = consumer
	}

	return svc, nil
}

// Start runs the hub (and the stream consumer when configured) until
// the context ends.
func (s *Service) Start(ctx context.Context) error {
	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		return s.eventConsumer.Stop()
	}
	return nil
}

// RegisterRoutes registers the WebSocket and REST routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.statsHandler.RegisterStatsRoutes(mux)
}

// ViewerCount reports the size of the connected-viewer set.
func (s *Service) ViewerCount() int {
	return s.connectionManager.ViewerCount()
}
