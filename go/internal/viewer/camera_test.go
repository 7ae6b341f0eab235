package viewer

import (
	"math"
	"testing"
	"time"

	"github.com/pressatlas/pressatlas/go/internal/geo"
)

func coordsClose(a, b geo.Coordinates, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance && math.Abs(a.Lon-b.Lon) <= tolerance
}

func TestCameraFollowsMidpointThenEndpoint(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	from := geo.Coordinates{Lat: 0, Lon: 0}
	to := geo.Coordinates{Lat: 0, Lon: 90}

	camera := NewCamera(from)
	camera.SetFollow(true)
	camera.FollowArc(start, from, to, 10*time.Second)

	// At the start the camera has not moved.
	if got := camera.Position(start); !coordsClose(got, from, 1e-9) {
		t.Errorf("position at t=0 = %+v, want %+v", got, from)
	}

	// Halfway through the first leg, eased interpolation toward the
	// midpoint (0, 45): smoothstep(0.5) = 0.5.
	got := camera.Position(start.Add(2500 * time.Millisecond))
	if want := (geo.Coordinates{Lat: 0, Lon: 22.5}); !coordsClose(got, want, 1e-6) {
		t.Errorf("position mid-first-leg = %+v, want %+v", got, want)
	}

	// At half the arc duration the camera sits on the midpoint.
	got = camera.Position(start.Add(5 * time.Second))
	if want := (geo.Coordinates{Lat: 0, Lon: 45}); !coordsClose(got, want, 1e-6) {
		t.Errorf("position at midpoint time = %+v, want %+v", got, want)
	}

	// After the full duration the camera rests at the endpoint.
	got = camera.Position(start.Add(11 * time.Second))
	if !coordsClose(got, to, 1e-6) {
		t.Errorf("final position = %+v, want %+v", got, to)
	}
}

func TestCameraDisabledIssuesNoMoves(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	origin := geo.Coordinates{Lat: 10, Lon: 10}

	camera := NewCamera(origin)
	camera.FollowArc(start, geo.Coordinates{}, geo.Coordinates{Lat: 0, Lon: 90}, 10*time.Second)

	if got := camera.Position(start.Add(5 * time.Second)); !coordsClose(got, origin, 1e-9) {
		t.Errorf("disabled camera moved to %+v", got)
	}
}

func TestCameraDisableDoesNotCancelInFlightMove(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	from := geo.Coordinates{Lat: 0, Lon: 0}
	to := geo.Coordinates{Lat: 0, Lon: 90}

	camera := NewCamera(from)
	camera.SetFollow(true)
	camera.FollowArc(start, from, to, 10*time.Second)

	// Disabling follow stops new moves but the planned one completes.
	camera.SetFollow(false)
	camera.FollowArc(start, to, geo.Coordinates{Lat: 45, Lon: 0}, 10*time.Second)

	got := camera.Position(start.Add(11 * time.Second))
	if !coordsClose(got, to, 1e-6) {
		t.Errorf("position after disable = %+v, want original endpoint %+v", got, to)
	}
}

func TestCameraCrossesAntimeridianShortWay(t *testing.T) {
	a := geo.Coordinates{Lat: 0, Lon: 170}
	b := geo.Coordinates{Lat: 0, Lon: -170}

	// Linear midpoint of the short path is the antimeridian itself.
	got := lerpCoordinates(a, b, 0.5)
	if math.Abs(math.Abs(got.Lon)-180) > 1e-9 {
		t.Errorf("lerp across antimeridian = %+v, want lon +-180", got)
	}
}

func TestCameraReset(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	from := geo.Coordinates{Lat: 0, Lon: 0}

	camera := NewCamera(from)
	camera.SetFollow(true)
	camera.FollowArc(start, from, geo.Coordinates{Lat: 0, Lon: 90}, 10*time.Second)
	camera.Reset()

	if got := camera.Position(start.Add(20 * time.Second)); !coordsClose(got, from, 1e-9) {
		t.Errorf("position after reset = %+v, want %+v", got, from)
	}
}
