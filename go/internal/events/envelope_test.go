package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pressatlas/pressatlas/go/internal/geo"
	"github.com/pressatlas/pressatlas/go/internal/press"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := PressBroadcastPayload{
		Region:    "Europe",
		Location:  geo.Coordinates{Lat: 48.8566, Lon: 2.3522},
		PressedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Tally:     press.RegionTally{Region: "Europe", Count: 42},
		DeviceID:  "device-1",
	}

	env, err := NewEnvelope(TypePressBroadcast, payload)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if env.ID == "" {
		t.Error("envelope has no ID")
	}

	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(wire, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	parsed, err := ParsePayload(decoded)
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	got, ok := parsed.(PressBroadcastPayload)
	if !ok {
		t.Fatalf("ParsePayload() = %T, want PressBroadcastPayload", parsed)
	}
	if got.Region != payload.Region || got.Tally.Count != payload.Tally.Count {
		t.Errorf("payload = %+v, want %+v", got, payload)
	}
	if got.Location != payload.Location {
		t.Errorf("location = %v, want %v", got.Location, payload.Location)
	}
}

func TestParsePayloadVariants(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		payload any
	}{
		{"viewer count", TypeViewerCountChanged, ViewerCountChangedPayload{Count: 7}},
		{"rejection", TypePressRejected, PressRejectedPayload{Reason: "needs_verification", Message: "verification failed"}},
		{"snapshot", TypeTallySnapshot, TallySnapshotPayload{Tallies: []press.RegionTally{{Region: "Africa", Count: 3}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := NewEnvelope(tt.typ, tt.payload)
			if err != nil {
				t.Fatalf("NewEnvelope() error = %v", err)
			}
			if _, err := ParsePayload(env); err != nil {
				t.Errorf("ParsePayload() error = %v", err)
			}
		})
	}
}

func TestParsePayloadUnknownType(t *testing.T) {
	env := Envelope{Type: Type("Bogus"), Data: json.RawMessage(`{}`)}
	if _, err := ParsePayload(env); err == nil {
		t.Error("ParsePayload() accepted unknown type")
	}
}
