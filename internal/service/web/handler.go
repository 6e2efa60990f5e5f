package web

import (
	"encoding/json"
	"net/http"

	"listing_harvester/internal/shared/globalstate"
	"listing_harvester/internal/shared/logger"
)

// StateProvider exposes the run counters to the web layer.
type StateProvider interface {
	Snapshot() globalstate.Snapshot
}

// Handler serves the status API.
type Handler struct {
	state StateProvider
}

func NewHandler(state StateProvider) *Handler {
	return &Handler{state: state}
}

// HandleStatus writes the current run snapshot as JSON.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.state.Snapshot()); err != nil {
		logger.Error().Err(err).Msg("[Handler] Failed to encode status")
	}
}
