package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/events"
	"github.com/pressatlas/pressatlas/go/internal/press"
)

// clientMessage is the inbound frame format from viewers.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	clientMessagePress              = "press"
	clientMessageRequestViewerCount = "request_viewer_count"
)

// handleClientMessage routes one inbound frame. It runs on the
// connection's read pump, so per-connection handling is serial and the
// verified flag needs no locking.
func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("dropping malformed client message")
		return
	}

	switch msg.Type {
	case clientMessagePress:
		c.handlePress(msg.Data)
	case clientMessageRequestViewerCount:
		c.sendViewerCount()
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown client message type")
	}
}

// handlePress runs one submission through the aggregator. A success is
// broadcast to every viewer and published to the event stream; a
// failure goes back only to this submitter.
func (c *Connection) handlePress(data json.RawMessage) {
	cm := c.Manager

	var req press.SubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reject(press.RejectionReason(press.ErrValidation), "malformed press submission")
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = c.DeviceID
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.SubmitTimeout)
	defer cancel()

	receipt, verified, err := cm.pressApp.SubmitPress(ctx, req, c.verified)
	c.verified = verified
	if err != nil {
		log.Info().
			Err(err).
			Str("connection_id", c.ID).
			Str("reason", press.RejectionReason(err)).
			Msg("press rejected")
		c.reject(press.RejectionReason(err), err.Error())
		return
	}

	env, err := events.NewEnvelope(events.TypePressBroadcast, events.PressBroadcastPayload{
		Region:    receipt.Event.Region,
		Location:  receipt.Event.Location,
		PressedAt: receipt.Event.PressedAt,
		Tally:     receipt.Tally,
		DeviceID:  receipt.Event.DeviceID,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build press broadcast envelope")
		return
	}
	env.Origin = cm.instanceID

	cm.Broadcast(env)

	if err := cm.publisher.Publish(ctx, env); err != nil {
		// Stream delivery is best-effort; local viewers already have
		// the event.
		log.Error().Err(err).Str("event_id", env.ID).Msg("failed to publish press to event stream")
	}
}

// reject sends a structured failure to this connection only.
func (c *Connection) reject(reason, message string) {
	env, err := events.NewEnvelope(events.TypePressRejected, events.PressRejectedPayload{
		Reason:  reason,
		Message: message,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build rejection envelope")
		return
	}
	c.Manager.sendTo(c, env)
}

// sendViewerCount re-emits the current count to this connection only.
func (c *Connection) sendViewerCount() {
	env, err := events.NewEnvelope(events.TypeViewerCountChanged, events.ViewerCountChangedPayload{
		Count: c.Manager.ViewerCount(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build viewer count envelope")
		return
	}
	c.Manager.sendTo(c, env)
}
