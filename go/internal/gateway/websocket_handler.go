package gateway

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests from viewers.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleViewerConnection handles WebSocket connections for viewers.
func (h *WebSocketHandler) HandleViewerConnection(w http.ResponseWriter, r *http.Request) {
	// The device ID is a pseudo-anonymous token the client generates
	// once and reuses; nothing is verified about it.
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, deviceID); err != nil {
		log.Error().
			Err(err).
			Str("device_id", deviceID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"connected_viewers":%d}`, h.connectionManager.ViewerCount())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleViewerConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
