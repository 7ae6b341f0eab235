package viewer

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/events"
	"github.com/pressatlas/pressatlas/go/internal/geo"
)

// Clock is the interface the sequencer uses for time operations.
// In production, clockwork.NewRealClock(); in tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// ArcConfig tunes how press distance maps to arc shape and timing.
type ArcConfig struct {
	// MinAltitude and MaxAltitude bound the arc height factor. Nearby
	// presses arc low, distant ones arc high, saturating smoothly so
	// antipodal presses never blow past the ceiling.
	MinAltitude float64
	MaxAltitude float64
	// AltitudeScaleKm controls how fast altitude saturates with
	// distance.
	AltitudeScaleKm float64

	// BaseDuration is the floor for every arc animation.
	BaseDuration time.Duration
	// PerThousandKm is added to the duration for each 1000 km of
	// distance.
	PerThousandKm time.Duration

	// SettleDelay is how long the very first point is shown before the
	// queue is consulted again.
	SettleDelay time.Duration
	// ClearBuffer is the slack after an arc's duration before the arc
	// is cleared and the next item dequeued.
	ClearBuffer time.Duration

	// MaxQueueDepth is a soft cap on pending events. When a burst
	// exceeds it the oldest pending event is dropped, keeping the
	// display closer to live at the cost of skipping stale arcs.
	// Zero means unbounded.
	MaxQueueDepth int
}

// DefaultArcConfig returns the arc tuning used by the viewer binary.
func DefaultArcConfig() ArcConfig {
	return ArcConfig{
		MinAltitude:     0.1,
		MaxAltitude:     0.8,
		AltitudeScaleKm: 5000,
		BaseDuration:    1 * time.Second,
		PerThousandKm:   150 * time.Millisecond,
		SettleDelay:     500 * time.Millisecond,
		ClearBuffer:     200 * time.Millisecond,
		MaxQueueDepth:   256,
	}
}

// Altitude computes the arc height factor for a distance in km.
func (c ArcConfig) Altitude(distanceKm float64) float64 {
	return c.MinAltitude + (c.MaxAltitude-c.MinAltitude)*(1-math.Exp(-distanceKm/c.AltitudeScaleKm))
}

// ArcDuration computes the animation duration for a distance in km.
func (c ArcConfig) ArcDuration(distanceKm float64) time.Duration {
	return c.BaseDuration + time.Duration(distanceKm/1000*float64(c.PerThousandKm))
}

type sequencerState int

const (
	stateIdle sequencerState = iota
	stateAnimating
)

// Sequencer turns the broadcast stream, which may arrive faster than
// animations can play, into a strictly serialized run of arcs. Exactly
// one arc is in flight at a time and the queue drains in arrival
// order.
type Sequencer struct {
	mu sync.Mutex

	clock    Clock
	renderer Renderer
	camera   *Camera
	config   ArcConfig

	queue     []events.PressBroadcastPayload
	state     sequencerState
	lastPoint *geo.Coordinates
	// arcShowing distinguishes an in-flight arc from the first-point
	// settle, which animates nothing that needs clearing.
	arcShowing bool

	timer clockwork.Timer
	// gen invalidates pending timer callbacks across a Reset.
	gen uint64
}

// NewSequencer creates a sequencer drawing on the given renderer.
func NewSequencer(config ArcConfig, renderer Renderer) *Sequencer {
	return &Sequencer{
		clock:    clockwork.NewRealClock(),
		renderer: renderer,
		config:   config,
	}
}

// WithClock swaps the clock, for tests.
func (s *Sequencer) WithClock(clock Clock) *Sequencer {
	s.clock = clock
	return s
}

// WithCamera attaches a follow camera.
func (s *Sequencer) WithCamera(camera *Camera) *Sequencer {
	s.camera = camera
	return s
}

// OnEvent enqueues one broadcast press. Events with invalid
// coordinates are dropped and never enter the queue.
func (s *Sequencer) OnEvent(e events.PressBroadcastPayload) {
	if err := e.Location.Validate(); err != nil {
		log.Warn().
			Err(err).
			Str("region", e.Region).
			Msg("dropping press with invalid coordinates")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.MaxQueueDepth > 0 && len(s.queue) >= s.config.MaxQueueDepth {
		dropped := s.queue[0]
		s.queue = s.queue[1:]
		log.Warn().
			Str("region", dropped.Region).
			Int("depth", s.config.MaxQueueDepth).
			Msg("animation queue full, dropping oldest pending press")
	}

	s.queue = append(s.queue, e)
	s.advanceLocked()
}

// QueueDepth reports how many presses are waiting to animate.
func (s *Sequencer) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Reset clears the queue and discards anything in flight. The last
// displayed point survives so the globe keeps showing it. Called on
// viewer disconnect.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		stopAndDrainTimer(s.timer)
		s.timer = nil
	}
	if s.arcShowing {
		s.renderer.ClearArc()
		s.arcShowing = false
	}
	s.queue = nil
	s.state = stateIdle

	if s.camera != nil {
		s.camera.Reset()
	}
}

// advanceLocked dequeues the head and starts animating it. The dequeue
// and state transition happen under one lock hold, so a burst of
// concurrent arrivals can never start two animations at once.
func (s *Sequencer) advanceLocked() {
	if s.state != stateIdle || len(s.queue) == 0 {
		return
	}

	e := s.queue[0]
	s.queue = s.queue[1:]
	s.state = stateAnimating

	if s.lastPoint == nil {
		// First event ever: no arc, just the point and a short settle
		// before the queue is consulted again.
		s.renderer.ShowPoint(e.Location)
		p := e.Location
		s.lastPoint = &p
		s.scheduleLocked(s.config.SettleDelay, false)
		return
	}

	from := *s.lastPoint
	to := e.Location
	distance := geo.Haversine(from, to)
	altitude := s.config.Altitude(distance)
	duration := s.config.ArcDuration(distance)

	s.renderer.ShowArc(from, to, altitude, duration)
	s.arcShowing = true
	if s.camera != nil {
		s.camera.FollowArc(s.clock.Now(), from, to, duration)
	}

	p := to
	s.lastPoint = &p
	s.scheduleLocked(duration+s.config.ClearBuffer, true)
}

// scheduleLocked arms the completion timer for the current animation.
func (s *Sequencer) scheduleLocked(d time.Duration, clearArc bool) {
	gen := s.gen
	timer := s.clock.NewTimer(d)
	s.timer = timer

	go func() {
		<-timer.Chan()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			// Reset happened while we were waiting.
			return
		}
		if clearArc {
			s.renderer.ClearArc()
			s.arcShowing = false
		}
		s.timer = nil
		s.state = stateIdle
		s.advanceLocked()
	}()
}

// stopAndDrainTimer safely stops a timer and drains its channel, per
// the time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
