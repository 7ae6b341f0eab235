package viewer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RejectionReason explains why the gate refused a press attempt.
type RejectionReason string

const (
	// ReasonCooldown means the device pressed too recently.
	ReasonCooldown RejectionReason = "cooldown"
	// ReasonNeedsVerification means the device has not completed
	// challenge verification (or its verification was invalidated).
	ReasonNeedsVerification RejectionReason = "needs_verification"
)

// Admission is the gate's answer to one press attempt.
type Admission struct {
	Allowed bool
	Reason  RejectionReason
	// RetryIn is how long to wait before the cooldown clears. Only set
	// for cooldown rejections.
	RetryIn time.Duration
}

// Gate is the local admission predicate in front of press submission.
// It is purely local state: no network call originates here.
type Gate struct {
	mu sync.Mutex

	clock    clockwork.Clock
	cooldown time.Duration

	verified     bool
	lastAccepted time.Time
	pressed      bool
}

// DefaultCooldown is how long a device must wait between presses.
const DefaultCooldown = 5 * time.Second

// NewGate creates a gate with the given cooldown period.
func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{
		clock:    clockwork.NewRealClock(),
		cooldown: cooldown,
	}
}

// WithClock swaps the clock. In production, the real clock; in tests, a
// clockwork.FakeClock.
func (g *Gate) WithClock(clock clockwork.Clock) *Gate {
	g.clock = clock
	return g
}

// MarkVerified records that the device completed challenge
// verification. Verification is sticky until Invalidate is called.
func (g *Gate) MarkVerified() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = true
}

// Invalidate clears the verified flag, for example when the challenge
// provider signals that the token expired.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = false
}

// Verified reports whether the device currently counts as verified.
func (g *Gate) Verified() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verified
}

// TryPress decides whether a press attempt may proceed. On acceptance
// the cooldown is consumed immediately, before the server has
// confirmed anything; a submission the server later rejects does not
// get its cooldown back. That keeps the worst-case request rate
// bounded even under retry storms.
func (g *Gate) TryPress() Admission {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	if g.pressed {
		if elapsed := now.Sub(g.lastAccepted); elapsed < g.cooldown {
			return Admission{
				Reason:  ReasonCooldown,
				RetryIn: g.cooldown - elapsed,
			}
		}
	}

	if !g.verified {
		return Admission{Reason: ReasonNeedsVerification}
	}

	g.lastAccepted = now
	g.pressed = true
	return Admission{Allowed: true}
}
