package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pressatlas/pressatlas/go/internal/geo"
	"github.com/pressatlas/pressatlas/go/internal/press"
)

// Type tags the variant carried by an Envelope.
type Type string

const (
	TypePressBroadcast     Type = "PressBroadcast"
	TypeTallySnapshot      Type = "TallySnapshot"
	TypeViewerCountChanged Type = "ViewerCountChanged"
	TypePressRejected      Type = "PressRejected"
)

// Envelope is the single tagged-variant message exchanged with viewers
// and carried over the event stream. Data holds the payload for Type.
type Envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`

	// Origin identifies the hub instance that first broadcast the
	// envelope, so stream consumers can drop their own echoes.
	Origin string `json:"origin,omitempty"`
}

// PressBroadcastPayload announces one accepted press to every viewer.
type PressBroadcastPayload struct {
	Region    string            `json:"region"`
	Location  geo.Coordinates   `json:"location"`
	PressedAt time.Time         `json:"pressed_at"`
	Tally     press.RegionTally `json:"tally"`
	DeviceID  string            `json:"device_id"`
}

// TallySnapshotPayload carries the full tally table, ordered by count
// descending, plus the most recent press if one exists. Sent to a
// viewer once, on connect.
type TallySnapshotPayload struct {
	Tallies   []press.RegionTally `json:"tallies"`
	LastPress *press.Event        `json:"last_press,omitempty"`
}

// ViewerCountChangedPayload carries the connected-viewer count. The
// count includes the receiving viewer, so it is at least 1.
type ViewerCountChangedPayload struct {
	Count int `json:"count"`
}

// PressRejectedPayload reports a submission failure to the one client
// that submitted it.
type PressRejectedPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// NewEnvelope wraps a payload in a tagged envelope.
func NewEnvelope(t Type, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// ParsePayload decodes the envelope's payload into the struct matching
// its type tag. Unknown types return an error so boundary validation
// stays strict.
func ParsePayload(env Envelope) (any, error) {
	switch env.Type {
	case TypePressBroadcast:
		var payload PressBroadcastPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
		}
		return payload, nil

	case TypeTallySnapshot:
		var payload TallySnapshotPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
		}
		return payload, nil

	case TypeViewerCountChanged:
		var payload ViewerCountChangedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
		}
		return payload, nil

	case TypePressRejected:
		var payload PressRejectedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}
}
