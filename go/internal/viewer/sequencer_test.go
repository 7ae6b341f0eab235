package viewer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pressatlas/pressatlas/go/internal/events"
	"github.com/pressatlas/pressatlas/go/internal/geo"
)

// renderCall records one renderer invocation.
type renderCall struct {
	op       string
	from, to geo.Coordinates
	altitude float64
	duration time.Duration
}

// recordingRenderer captures render calls and signals each one.
type recordingRenderer struct {
	mu     sync.Mutex
	calls  []renderCall
	notify chan renderCall
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{notify: make(chan renderCall, 100)}
}

func (r *recordingRenderer) record(c renderCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	r.notify <- c
}

func (r *recordingRenderer) ShowPoint(p geo.Coordinates) {
	r.record(renderCall{op: "point", to: p})
}

func (r *recordingRenderer) ShowArc(from, to geo.Coordinates, altitude float64, duration time.Duration) {
	r.record(renderCall{op: "arc", from: from, to: to, altitude: altitude, duration: duration})
}

func (r *recordingRenderer) ClearArc() {
	r.record(renderCall{op: "clear"})
}

func (r *recordingRenderer) PointOfView(p geo.Coordinates) {}

// waitCall blocks until the renderer reports its next call.
func (r *recordingRenderer) waitCall(t *testing.T) renderCall {
	t.Helper()
	select {
	case c := <-r.notify:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for renderer call")
		return renderCall{}
	}
}

func testArcConfig() ArcConfig {
	cfg := DefaultArcConfig()
	cfg.MaxQueueDepth = 0
	return cfg
}

func pressAt(lat, lon float64) events.PressBroadcastPayload {
	return events.PressBroadcastPayload{
		Region:   "Test",
		Location: geo.Coordinates{Lat: lat, Lon: lon},
	}
}

func TestSequencerDrainsInArrivalOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	seq := NewSequencer(testArcConfig(), renderer).WithClock(clock)

	a := geo.Coordinates{Lat: 0, Lon: 0}
	b := geo.Coordinates{Lat: 10, Lon: 10}
	c := geo.Coordinates{Lat: 20, Lon: 20}

	// First event ever shows a bare point, no arc.
	seq.OnEvent(pressAt(a.Lat, a.Lon))
	call := renderer.waitCall(t)
	if call.op != "point" || call.to != a {
		t.Fatalf("first call = %+v, want point at A", call)
	}

	// B and C arrive while the first point is settling.
	seq.OnEvent(pressAt(b.Lat, b.Lon))
	seq.OnEvent(pressAt(c.Lat, c.Lon))
	if depth := seq.QueueDepth(); depth != 2 {
		t.Fatalf("queue depth = %d, want 2", depth)
	}

	// Settle elapses; the first arc must be A to B, never B before A.
	clock.BlockUntil(1)
	clock.Advance(time.Hour)
	call = renderer.waitCall(t)
	if call.op != "arc" || call.from != a || call.to != b {
		t.Fatalf("second call = %+v, want arc A->B", call)
	}

	// The arc clears, then the next arc is B to C.
	clock.BlockUntil(1)
	clock.Advance(time.Hour)
	if call = renderer.waitCall(t); call.op != "clear" {
		t.Fatalf("expected clear, got %+v", call)
	}
	call = renderer.waitCall(t)
	if call.op != "arc" || call.from != b || call.to != c {
		t.Fatalf("third call = %+v, want arc B->C", call)
	}

	// Final clear; the queue is drained.
	clock.BlockUntil(1)
	clock.Advance(time.Hour)
	if call = renderer.waitCall(t); call.op != "clear" {
		t.Fatalf("expected final clear, got %+v", call)
	}
	if depth := seq.QueueDepth(); depth != 0 {
		t.Errorf("queue depth after drain = %d, want 0", depth)
	}
}

func TestArcDurationMonotonicInDistance(t *testing.T) {
	cfg := DefaultArcConfig()

	distances := []float64{0, 100, 500, 1000, 5000, 10000, 20000}
	for i := 1; i < len(distances); i++ {
		d1 := cfg.ArcDuration(distances[i-1])
		d2 := cfg.ArcDuration(distances[i])
		if d2 < d1 {
			t.Errorf("duration(%v km) = %v < duration(%v km) = %v",
				distances[i], d2, distances[i-1], d1)
		}
	}

	if got := cfg.ArcDuration(0); got != cfg.BaseDuration {
		t.Errorf("duration at zero distance = %v, want base %v", got, cfg.BaseDuration)
	}
}

func TestAltitudeSaturates(t *testing.T) {
	cfg := DefaultArcConfig()

	// Altitude approaches but never exceeds the maximum.
	for _, d := range []float64{0, 1000, 10000, 1e6, 1e9} {
		alt := cfg.Altitude(d)
		if alt < cfg.MinAltitude || alt > cfg.MaxAltitude {
			t.Errorf("altitude(%v km) = %v outside [%v, %v]", d, alt, cfg.MinAltitude, cfg.MaxAltitude)
		}
	}

	if alt := cfg.Altitude(0); math.Abs(alt-cfg.MinAltitude) > 1e-12 {
		t.Errorf("altitude at zero distance = %v, want min %v", alt, cfg.MinAltitude)
	}
	if alt := cfg.Altitude(1e9); cfg.MaxAltitude-alt > 1e-6 {
		t.Errorf("altitude at extreme distance = %v, want approximately max %v", alt, cfg.MaxAltitude)
	}

	// Strictly increasing in distance.
	if cfg.Altitude(100) >= cfg.Altitude(10000) {
		t.Error("altitude is not increasing with distance")
	}
}

func TestSequencerDropsInvalidCoordinates(t *testing.T) {
	renderer := newRecordingRenderer()
	seq := NewSequencer(testArcConfig(), renderer).WithClock(clockwork.NewFakeClock())

	seq.OnEvent(pressAt(math.NaN(), 0))
	seq.OnEvent(pressAt(91, 0))
	seq.OnEvent(pressAt(0, 181))

	if depth := seq.QueueDepth(); depth != 0 {
		t.Errorf("queue depth = %d, want 0 after invalid events", depth)
	}
	select {
	case call := <-renderer.notify:
		t.Errorf("unexpected render call %+v for invalid event", call)
	default:
	}
}

func TestSequencerDropsOldestWhenFull(t *testing.T) {
	cfg := testArcConfig()
	cfg.MaxQueueDepth = 2
	renderer := newRecordingRenderer()
	seq := NewSequencer(cfg, renderer).WithClock(clockwork.NewFakeClock())

	// The first event starts animating immediately; the rest queue up.
	seq.OnEvent(pressAt(0, 0))
	renderer.waitCall(t)
	for i := 1; i <= 5; i++ {
		seq.OnEvent(pressAt(float64(i), float64(i)))
	}

	if depth := seq.QueueDepth(); depth != 2 {
		t.Errorf("queue depth = %d, want soft cap 2", depth)
	}
}

func TestSequencerResetDuringSettleKeepsPoint(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	seq := NewSequencer(testArcConfig(), renderer).WithClock(clock)

	// Only the first point is showing; nothing is arcing yet.
	seq.OnEvent(pressAt(0, 0))
	renderer.waitCall(t)
	seq.OnEvent(pressAt(10, 10))
	seq.OnEvent(pressAt(20, 20))

	seq.Reset()
	if depth := seq.QueueDepth(); depth != 0 {
		t.Errorf("queue depth after reset = %d, want 0", depth)
	}

	// No arc was in flight, so nothing gets cleared and the pending
	// settle timer must not drive any further animation.
	clock.Advance(time.Hour)
	select {
	case call := <-renderer.notify:
		t.Errorf("render call %+v after reset", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSequencerResetDuringArcClearsIt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	renderer := newRecordingRenderer()
	seq := NewSequencer(testArcConfig(), renderer).WithClock(clock)

	seq.OnEvent(pressAt(0, 0))
	renderer.waitCall(t)
	seq.OnEvent(pressAt(10, 10))

	// Let the settle elapse so the arc starts.
	clock.BlockUntil(1)
	clock.Advance(time.Hour)
	if call := renderer.waitCall(t); call.op != "arc" {
		t.Fatalf("expected arc, got %+v", call)
	}

	seq.Reset()
	if call := renderer.waitCall(t); call.op != "clear" {
		t.Fatalf("expected clear on reset during arc, got %+v", call)
	}

	// A second reset has nothing left to clear.
	seq.Reset()
	select {
	case call := <-renderer.notify:
		t.Errorf("render call %+v on idle reset", call)
	case <-time.After(100 * time.Millisecond):
	}
}
