package press

import (
	"time"

	"github.com/google/uuid"

	"github.com/pressatlas/pressatlas/go/internal/geo"
)

// Event is a single accepted button press. Events are append-only and
// never mutated after creation.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Region    string          `json:"region"`
	Location  geo.Coordinates `json:"location"`
	DeviceID  string          `json:"device_id"`
	PressedAt time.Time       `json:"pressed_at"`
}

// RegionTally is the running aggregate for one region. Count is only
// ever changed through the store's atomic increment.
type RegionTally struct {
	Region        string    `json:"region"`
	Count         int64     `json:"count"`
	LastPressedAt time.Time `json:"last_pressed_at"`
}

// SubmitRequest is the raw inbound press submission.
type SubmitRequest struct {
	Region            string  `json:"region" validate:"required"`
	Latitude          float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude         float64 `json:"longitude" validate:"min=-180,max=180"`
	DeviceID          string  `json:"device_id" validate:"required"`
	VerificationToken string  `json:"verification_token,omitempty"`
}

// Receipt is the canonical result of an accepted press: the persisted
// event plus the updated tally, ready for broadcast.
type Receipt struct {
	Event Event       `json:"event"`
	Tally RegionTally `json:"tally"`
}
