package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/events"
	"github.com/pressatlas/pressatlas/go/internal/geo"
	"github.com/pressatlas/pressatlas/go/internal/press"
)

// ClientConfig holds the viewer transport settings.
type ClientConfig struct {
	// URL is the gateway WebSocket endpoint, e.g. ws://host/ws.
	URL string

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
}

// DefaultClientConfig returns the viewer transport defaults.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:                  url,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       1 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

// Client is the viewer's connection to the gateway: it feeds broadcast
// presses into the sequencer and submits this device's presses through
// the admission gate.
type Client struct {
	config    ClientConfig
	deviceID  string
	gate      *Gate
	sequencer *Sequencer

	mu             sync.Mutex
	conn           *websocket.Conn
	challengeToken string
	viewerCount    int
	tallies        []press.RegionTally
}

// clientFrame mirrors the gateway's inbound message format.
type clientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewClient creates a viewer client.
func NewClient(config ClientConfig, deviceID string, gate *Gate, sequencer *Sequencer) *Client {
	return &Client{
		config:    config,
		deviceID:  deviceID,
		gate:      gate,
		sequencer: sequencer,
	}
}

// SetChallengeToken stores the token from a completed challenge and
// marks the device verified for the gate.
func (c *Client) SetChallengeToken(token string) {
	c.mu.Lock()
	c.challengeToken = token
	c.mu.Unlock()

	if token != "" {
		c.gate.MarkVerified()
	}
}

// ViewerCount returns the last announced connected-viewer count.
func (c *Client) ViewerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewerCount
}

// Tallies returns the most recent tally snapshot.
func (c *Client) Tallies() []press.RegionTally {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tallies
}

// Run connects to the gateway and pumps broadcasts into the sequencer
// until the context ends or the reconnect attempts run out. Each
// disconnect resets the sequencer, discarding queued animations.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			if attempts > c.config.MaxReconnectAttempts {
				return fmt.Errorf("gateway unreachable after %d attempts: %w", attempts-1, err)
			}
			log.Warn().
				Err(err).
				Int("attempt", attempts).
				Msg("gateway dial failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.ReconnectDelay):
			}
			continue
		}

		attempts = 0
		c.setConn(conn)
		log.Info().Str("url", c.config.URL).Msg("connected to gateway")

		// Ask for the count up front, as on every (re)connect.
		c.send(clientFrame{Type: "request_viewer_count"})

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		c.sequencer.Reset()
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("gateway connection lost")
	}
}

// Press runs one press attempt through the admission gate and, when
// admitted, submits it. The gate's cooldown is consumed even if the
// server later rejects the submission.
func (c *Client) Press(location geo.Coordinates) (Admission, error) {
	admission := c.gate.TryPress()
	if !admission.Allowed {
		return admission, nil
	}

	c.mu.Lock()
	token := c.challengeToken
	c.mu.Unlock()

	req := press.SubmitRequest{
		Region:            geo.ResolveRegion(location),
		Latitude:          location.Lat,
		Longitude:         location.Lon,
		DeviceID:          c.deviceID,
		VerificationToken: token,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return admission, fmt.Errorf("encode press: %w", err)
	}
	if err := c.send(clientFrame{Type: "press", Data: data}); err != nil {
		return admission, err
	}
	return admission, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	url := c.config.URL + "?device_id=" + c.deviceID

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) send(frame clientFrame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write to gateway: %w", err)
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// ReadJSON has no context plumbing, so cancellation closes the
	// connection out from under it to unblock the pending read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.handleEnvelope(env)
	}
}

func (c *Client) handleEnvelope(env events.Envelope) {
	payload, err := events.ParsePayload(env)
	if err != nil {
		log.Warn().
			Err(err).
			Str("type", string(env.Type)).
			Msg("dropping unreadable envelope")
		return
	}

	switch p := payload.(type) {
	case events.PressBroadcastPayload:
		c.mu.Lock()
		c.applyTally(p.Tally)
		c.mu.Unlock()
		c.sequencer.OnEvent(p)

	case events.TallySnapshotPayload:
		c.mu.Lock()
		c.tallies = p.Tallies
		c.mu.Unlock()
		log.Info().Int("regions", len(p.Tallies)).Msg("tally snapshot received")

	case events.ViewerCountChangedPayload:
		c.mu.Lock()
		c.viewerCount = p.Count
		c.mu.Unlock()
		log.Debug().Int("viewers", p.Count).Msg("viewer count changed")

	case events.PressRejectedPayload:
		log.Warn().
			Str("reason", p.Reason).
			Str("message", p.Message).
			Msg("press rejected by server")
		if p.Reason == "needs_verification" {
			// The server wants a fresh challenge before the next press.
			c.gate.Invalidate()
		}
	}
}

// applyTally folds one broadcast tally into the local snapshot.
// Caller holds c.mu.
func (c *Client) applyTally(t press.RegionTally) {
	for i := range c.tallies {
		if c.tallies[i].Region == t.Region {
			c.tallies[i] = t
			return
		}
	}
	c.tallies = append(c.tallies, t)
}
