package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/events"
	"github.com/pressatlas/pressatlas/go/internal/press"
)

// PressApp is the aggregator surface the hub depends on.
type PressApp interface {
	SubmitPress(ctx context.Context, req press.SubmitRequest, alreadyVerified bool) (*press.Receipt, bool, error)
	Tallies(ctx context.Context) ([]press.RegionTally, error)
	LastPress(ctx context.Context) (*press.Event, error)
	RecentPresses(ctx context.Context, limit int) ([]press.Event, error)
}

// Recorder receives hub metrics.
type Recorder interface {
	SetConnectedViewers(n int)
	BroadcastSent()
	ViewerEvicted()
}

type noopRecorder struct{}

func (noopRecorder) SetConnectedViewers(int) {}

func (noopRecorder) BroadcastSent() {}

func (noopRecorder) ViewerEvicted() {}

// ConnectionManager is the broadcast hub: it owns the connected-viewer
// set and fans out envelopes to every live viewer.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	pressApp  PressApp
	publisher events.Publisher
	metrics   Recorder

	// instanceID stamps outbound envelopes so a stream consumer in the
	// same process can drop its own echoes.
	instanceID string

	broadcastCh chan broadcastMessage
}

// Connection represents one viewer's WebSocket connection.
type Connection struct {
	ID       string
	DeviceID string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	// verified is sticky for the life of the connection; it is only
	// touched from the connection's read pump.
	verified bool

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SubmitTimeout   time.Duration
	SnapshotTimeout time.Duration
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage is one envelope headed for the viewer set. A nil
// target means every connection.
type broadcastMessage struct {
	envelope events.Envelope
	target   *Connection
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SubmitTimeout:   15 * time.Second,
		SnapshotTimeout: 5 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates the hub.
func NewConnectionManager(config ConnectionConfig, pressApp PressApp, publisher events.Publisher) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		pressApp:    pressApp,
		publisher:   publisher,
		metrics:     noopRecorder{},
		instanceID:  uuid.New().String(),
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// WithRecorder installs a metrics recorder.
func (cm *ConnectionManager) WithRecorder(r Recorder) *ConnectionManager {
	cm.metrics = r
	return cm
}

// InstanceID returns the hub's origin tag.
func (cm *ConnectionManager) InstanceID() string {
	return cm.instanceID
}

// Start processes broadcast messages until the context ends.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Str("instance_id", cm.instanceID).Msg("broadcast hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcast hub shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a viewer WebSocket,
// registers the viewer, sends it the tally snapshot, and announces the
// new viewer count to everyone.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, deviceID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	cm.sendSnapshot(connection)
	cm.broadcastViewerCount()

	log.Info().
		Str("connection_id", connection.ID).
		Str("device_id", deviceID).
		Msg("viewer connected")

	return nil
}

// ViewerCount returns the size of the connected-viewer set.
func (cm *ConnectionManager) ViewerCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Broadcast queues an envelope for every connected viewer.
func (cm *ConnectionManager) Broadcast(env events.Envelope) {
	select {
	case cm.broadcastCh <- broadcastMessage{envelope: env}:
	default:
		log.Warn().Str("type", string(env.Type)).Msg("broadcast channel full, dropping message")
	}
}

// sendTo queues an envelope for a single viewer.
func (cm *ConnectionManager) sendTo(conn *Connection, env events.Envelope) {
	select {
	case cm.broadcastCh <- broadcastMessage{envelope: env, target: conn}:
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("type", string(env.Type)).
			Msg("broadcast channel full, dropping targeted message")
	}
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn] = true
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.metrics.SetConnectedViewers(total)

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", total).
		Msg("connection registered")
}

// unregisterConnection removes a viewer and re-announces the count.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	if exists {
		delete(cm.connections, conn)
		close(conn.Send)
	}
	total := len(cm.connections)
	cm.mu.Unlock()

	if !exists {
		return
	}

	cm.metrics.SetConnectedViewers(total)
	cm.broadcastViewerCount()

	log.Info().
		Str("connection_id", conn.ID).
		Str("device_id", conn.DeviceID).
		Int("total_connections", total).
		Msg("viewer disconnected")
}

// sendSnapshot delivers the full tally table and last press to one
// newly joined viewer.
func (cm *ConnectionManager) sendSnapshot(conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), cm.config.SnapshotTimeout)
	defer cancel()

	tallies, err := cm.pressApp.Tallies(ctx)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to load tally snapshot")
		return
	}
	lastPress, err := cm.pressApp.LastPress(ctx)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to load last press")
		// The snapshot is still worth sending without it.
	}

	env, err := events.NewEnvelope(events.TypeTallySnapshot, events.TallySnapshotPayload{
		Tallies:   tallies,
		LastPress: lastPress,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot envelope")
		return
	}
	cm.sendTo(conn, env)
}

// broadcastViewerCount announces the current count to every viewer.
func (cm *ConnectionManager) broadcastViewerCount() {
	env, err := events.NewEnvelope(events.TypeViewerCountChanged, events.ViewerCountChangedPayload{
		Count: cm.ViewerCount(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build viewer count envelope")
		return
	}
	cm.Broadcast(env)
}

// handleBroadcast writes one envelope to its target set. Delivery is
// fire-and-forget: a viewer with a full send buffer is evicted rather
// than allowed to stall the others.
//
// Sends happen while the read lock is held. unregisterConnection
// closes a Send channel only under the write lock, so a send here can
// never hit a closed channel; a failed viewer must never take down
// the hub loop and with it every other viewer's broadcasts.
func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	data, err := json.Marshal(message.envelope)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal envelope for broadcast")
		return
	}

	cm.mu.RLock()
	var sent int
	var evicted []*Connection
	if message.target != nil {
		if cm.connections[message.target] {
			if cm.trySend(message.target, data) {
				sent++
			} else {
				evicted = append(evicted, message.target)
			}
		}
	} else {
		for conn := range cm.connections {
			if cm.trySend(conn, data) {
				sent++
			} else {
				evicted = append(evicted, conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range evicted {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.metrics.ViewerEvicted()
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	if sent > 0 {
		log.Debug().
			Str("type", string(message.envelope.Type)).
			Int("connections", sent).
			Msg("envelope broadcast")
	}
}

// trySend queues data on a connection without blocking. Caller holds
// cm.mu (read side).
func (cm *ConnectionManager) trySend(conn *Connection, data []byte) bool {
	select {
	case conn.Send <- data:
		cm.metrics.BroadcastSent()
		return true
	default:
		return false
	}
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
