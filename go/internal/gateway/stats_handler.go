package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pressatlas/pressatlas/go/internal/verify"
)

const defaultRecentLimit = 100

// ChallengeVerifier is the oracle surface the REST middleware needs.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token string) (verify.Result, error)
}

// StatsHandler serves the read projections: tally snapshot, most
// recent press, and last-N presses.
type StatsHandler struct {
	pressApp PressApp
	verifier ChallengeVerifier

	// verifiedTokens caches tokens the oracle has already accepted so
	// repeat reads do not hit the oracle again.
	mu             sync.Mutex
	verifiedTokens map[string]bool
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(pressApp PressApp, verifier ChallengeVerifier) *StatsHandler {
	return &StatsHandler{
		pressApp:       pressApp,
		verifier:       verifier,
		verifiedTokens: make(map[string]bool),
	}
}

// HandleStats handles GET /api/stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tallies, err := h.pressApp.Tallies(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load tallies")
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, tallies)
}

// HandleLastPress handles GET /api/last-press.
func (h *StatsHandler) HandleLastPress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lastPress, err := h.pressApp.LastPress(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load last press")
		http.Error(w, "Failed to load last press", http.StatusInternalServerError)
		return
	}
	if lastPress == nil {
		http.Error(w, "No presses found", http.StatusNotFound)
		return
	}

	writeJSON(w, lastPress)
}

// HandleRecentPresses handles GET /api/recent-presses?limit=N.
func (h *StatsHandler) HandleRecentPresses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > defaultRecentLimit {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	presses, err := h.pressApp.RecentPresses(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to load recent presses")
		http.Error(w, "Failed to load recent presses", http.StatusInternalServerError)
		return
	}

	writeJSON(w, presses)
}

// RequireChallenge gates a read handler behind challenge verification.
// Tokens travel in the X-Challenge-Token header; accepted tokens are
// cached for the life of the process.
func (h *StatsHandler) RequireChallenge(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Challenge-Token")
		if token == "" {
			writeChallengeError(w, "Challenge token required")
			return
		}

		h.mu.Lock()
		cached := h.verifiedTokens[token]
		h.mu.Unlock()

		if !cached {
			result, err := h.verifier.Verify(r.Context(), token)
			if err != nil || !result.Success {
				writeChallengeError(w, "Verification failed")
				return
			}
			h.mu.Lock()
			h.verifiedTokens[token] = true
			h.mu.Unlock()
		}

		next(w, r)
	}
}

// RegisterStatsRoutes registers the read-projection routes.
func (h *StatsHandler) RegisterStatsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats", h.RequireChallenge(h.HandleStats))
	mux.HandleFunc("/api/last-press", h.RequireChallenge(h.HandleLastPress))
	mux.HandleFunc("/api/recent-presses", h.RequireChallenge(h.HandleRecentPresses))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeChallengeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"error":             message,
		"needsVerification": true,
	})
}
