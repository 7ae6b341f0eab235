package viewer

import (
	"sync"
	"time"

	"github.com/pressatlas/pressatlas/go/internal/geo"
)

// Camera implements follow mode: an eased, time-parameterized move
// toward the midpoint of the current arc and then to its endpoint,
// synchronized with the arc's own duration. Disabling follow stops new
// moves but does not cancel a move already in flight.
type Camera struct {
	mu sync.Mutex

	enabled  bool
	position geo.Coordinates
	plan     []cameraSegment
}

// cameraSegment is one leg of a follow move.
type cameraSegment struct {
	from, to geo.Coordinates
	start    time.Time
	duration time.Duration
}

// NewCamera creates a camera resting at the given position.
func NewCamera(start geo.Coordinates) *Camera {
	return &Camera{position: start}
}

// SetFollow enables or disables follow mode.
func (c *Camera) SetFollow(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// Following reports whether follow mode is active.
func (c *Camera) Following() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// FollowArc plans a move from the camera's current position to the
// arc's midpoint and on to its endpoint, spread across the arc's
// duration. A no-op when follow mode is off.
func (c *Camera) FollowArc(now time.Time, from, to geo.Coordinates, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	mid := geo.Midpoint(from, to)
	half := duration / 2
	c.plan = []cameraSegment{
		{from: c.position, to: mid, start: now, duration: half},
		{from: mid, to: to, start: now.Add(half), duration: duration - half},
	}
}

// Position evaluates the camera position at the given instant. Once a
// planned move completes, the camera rests at the move's endpoint.
func (c *Camera) Position(now time.Time) geo.Coordinates {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.plan) > 0 {
		seg := c.plan[0]
		elapsed := now.Sub(seg.start)
		if elapsed < 0 {
			return c.position
		}
		if elapsed < seg.duration {
			t := smoothstep(float64(elapsed) / float64(seg.duration))
			return lerpCoordinates(seg.from, seg.to, t)
		}
		// Segment finished; rest at its endpoint and look at the next.
		c.position = seg.to
		c.plan = c.plan[1:]
	}

	return c.position
}

// Reset discards any planned move, leaving the camera where it is.
func (c *Camera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plan = nil
}

// smoothstep is the classic 3t^2 - 2t^3 ease-in-out curve on [0, 1].
func smoothstep(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// lerpCoordinates interpolates between two points, taking the short
// way around the antimeridian.
func lerpCoordinates(a, b geo.Coordinates, t float64) geo.Coordinates {
	deltaLon := b.Lon - a.Lon
	if deltaLon > 180 {
		deltaLon -= 360
	} else if deltaLon < -180 {
		deltaLon += 360
	}

	lon := a.Lon + deltaLon*t
	if lon > 180 {
		lon -= 360
	} else if lon < -180 {
		lon += 360
	}

	return geo.Coordinates{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: lon,
	}
}
