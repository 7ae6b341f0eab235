package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/geo"
	"github.com/pressatlas/pressatlas/go/internal/viewer"
)

// Headless viewer: connects to the gateway, narrates the broadcast
// stream as arcs on the terminal, and optionally presses on a timer.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	url := getEnv("VIEWER_URL", "ws://localhost:8080/ws")

	deviceID, err := viewer.LoadDeviceID(os.Getenv("VIEWER_DEVICE_ID_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load device ID")
	}

	gate := viewer.NewGate(viewer.DefaultCooldown)

	renderer := viewer.TerminalRenderer{}
	camera := viewer.NewCamera(geo.Coordinates{})
	camera.SetFollow(getEnvBool("VIEWER_FOLLOW", true))

	sequencer := viewer.NewSequencer(viewer.DefaultArcConfig(), renderer).WithCamera(camera)

	client := viewer.NewClient(viewer.DefaultClientConfig(url), deviceID, gate, sequencer)
	if token := os.Getenv("CHALLENGE_TOKEN"); token != "" {
		client.SetChallengeToken(token)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sample the follow camera while it is animating.
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if camera.Following() {
					renderer.PointOfView(camera.Position(now))
				}
			}
		}
	}()

	// Optional press loop, for demos and smoke tests.
	if interval := getEnvDuration("PRESS_INTERVAL", 0); interval > 0 {
		location := geo.Coordinates{
			Lat: getEnvFloat("VIEWER_LAT", 0),
			Lon: getEnvFloat("VIEWER_LON", 0),
		}
		go pressLoop(ctx, client, location, interval)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Fatal().Err(err).Msg("viewer stopped")
		}
	}
}

func pressLoop(ctx context.Context, client *viewer.Client, location geo.Coordinates, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			admission, err := client.Press(location)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("press failed")
			case !admission.Allowed:
				log.Info().
					Str("reason", string(admission.Reason)).
					Dur("retry_in", admission.RetryIn).
					Msg("press not admitted")
			default:
				log.Info().Msg("press submitted")
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
