package press

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/geo"
	"github.com/pressatlas/pressatlas/go/internal/verify"
)

// Repository defines the storage operations the aggregator needs.
// IncrementTally must be atomic at the region-row granularity: the
// find-or-create plus add-1 is a single indivisible operation.
type Repository interface {
	InsertEvent(ctx context.Context, event Event) error
	IncrementTally(ctx context.Context, region string, pressedAt time.Time) (RegionTally, error)
	ListTallies(ctx context.Context) ([]RegionTally, error)
	LastEvent(ctx context.Context) (*Event, error)
	RecentEvents(ctx context.Context, limit int) ([]Event, error)
}

// Verifier is the challenge oracle contract.
type Verifier interface {
	Verify(ctx context.Context, token string) (verify.Result, error)
}

// Recorder receives aggregator metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	PressAccepted(region string)
	PressRejected(reason string)
	ObservePersistence(d time.Duration)
}

// NoopRecorder discards all measurements.
type NoopRecorder struct{}

func (NoopRecorder) PressAccepted(string) {}

func (NoopRecorder) PressRejected(string) {}

func (NoopRecorder) ObservePersistence(time.Duration) {}

// Config holds aggregator tuning.
type Config struct {
	// StoreTimeout bounds each persistence call (event write and tally
	// upsert each get their own timeout).
	StoreTimeout time.Duration
}

// DefaultConfig returns the aggregator defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout: 5 * time.Second,
	}
}

// App is the press aggregator. It validates, verifies, persists, and
// atomically counts each press. It holds no cross-request locks;
// concurrent presses rely entirely on the store's atomic increment.
type App struct {
	repo     Repository
	verifier Verifier
	validate *validator.Validate
	clock    clockwork.Clock
	metrics  Recorder
	config   Config
}

// NewApp creates a press aggregator.
func NewApp(repo Repository, verifier Verifier, config Config) *App {
	return &App{
		repo:     repo,
		verifier: verifier,
		validate: validator.New(),
		clock:    clockwork.NewRealClock(),
		metrics:  NoopRecorder{},
		config:   config,
	}
}

// WithClock replaces the clock, for tests.
func (a *App) WithClock(clock clockwork.Clock) *App {
	a.clock = clock
	return a
}

// WithRecorder installs a metrics recorder.
func (a *App) WithRecorder(r Recorder) *App {
	a.metrics = r
	return a
}

// SubmitPress runs the full admission pipeline for one press:
// validate, verify (unless the connection is already verified),
// persist the event, then atomically bump the region tally.
//
// The returned bool reports whether the caller's connection should now
// be considered verified. No step is retried internally; errors wrap
// exactly one sentinel from errors.go.
func (a *App) SubmitPress(ctx context.Context, req SubmitRequest, alreadyVerified bool) (*Receipt, bool, error) {
	if err := a.validateRequest(req); err != nil {
		a.metrics.PressRejected(RejectionReason(err))
		return nil, alreadyVerified, err
	}

	verified := alreadyVerified
	if !verified {
		if err := a.verifyToken(ctx, req.VerificationToken); err != nil {
			a.metrics.PressRejected(RejectionReason(err))
			return nil, false, err
		}
		verified = true
	}

	event := Event{
		ID:     uuid.New(),
		Region: req.Region,
		Location: geo.Coordinates{
			Lat: req.Latitude,
			Lon: req.Longitude,
		},
		DeviceID:  req.DeviceID,
		PressedAt: a.clock.Now().UTC(),
	}

	start := a.clock.Now()

	insertCtx, cancel := context.WithTimeout(ctx, a.config.StoreTimeout)
	defer cancel()
	if err := a.repo.InsertEvent(insertCtx, event); err != nil {
		// The tally is never updated when the event write did not
		// durably succeed, so the tally cannot run ahead of the log.
		a.metrics.PressRejected("storage_error")
		return nil, verified, fmt.Errorf("%w: event write: %v", ErrPersistence, err)
	}

	tallyCtx, cancel := context.WithTimeout(ctx, a.config.StoreTimeout)
	defer cancel()
	tally, err := a.repo.IncrementTally(tallyCtx, event.Region, event.PressedAt)
	if err != nil {
		// The event is already persisted; the tally is now behind the
		// log. Tolerated: recoverable by replaying the event log, not
		// retried within this request.
		log.Warn().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("region", event.Region).
			Msg("event persisted but tally update failed")
		a.metrics.PressRejected("storage_error")
		return nil, verified, fmt.Errorf("%w: tally update: %v", ErrPersistence, err)
	}

	a.metrics.ObservePersistence(a.clock.Since(start))
	a.metrics.PressAccepted(event.Region)

	log.Info().
		Str("event_id", event.ID.String()).
		Str("region", event.Region).
		Int64("count", tally.Count).
		Msg("press accepted")

	return &Receipt{Event: event, Tally: tally}, verified, nil
}

// Tallies returns the current tally snapshot ordered by count, descending.
func (a *App) Tallies(ctx context.Context) ([]RegionTally, error) {
	return a.repo.ListTallies(ctx)
}

// LastPress returns the most recent press, or nil when none exists.
func (a *App) LastPress(ctx context.Context) (*Event, error) {
	return a.repo.LastEvent(ctx)
}

// RecentPresses returns the last limit presses, newest first.
func (a *App) RecentPresses(ctx context.Context, limit int) ([]Event, error) {
	return a.repo.RecentEvents(ctx, limit)
}

func (a *App) validateRequest(req SubmitRequest) error {
	if err := a.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	coords := geo.Coordinates{Lat: req.Latitude, Lon: req.Longitude}
	if err := coords.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (a *App) verifyToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: no token supplied", ErrVerificationFailed)
	}

	result, err := a.verifier.Verify(ctx, token)
	if err != nil {
		// Oracle timeouts and transport failures both fail closed.
		return fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: oracle error codes %v", ErrVerificationFailed, result.ErrorCodes)
	}
	return nil
}
