package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"listing_harvester/internal/shared/logger"
)

// NewMux wires the progress feed routes.
func NewMux(state StateProvider, hub *Hub) *http.ServeMux {
	handler := NewHandler(state)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", handler.HandleStatus)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	return mux
}

// StartServer starts the progress feed on port. It returns nil when port is
// not positive (feed disabled). The caller shuts the returned server down.
func StartServer(wg *sync.WaitGroup, port int, state StateProvider, hub *Hub) (*http.Server, error) {
	if port <= 0 {
		logger.Debug().Msg("[WebServer] Progress feed is disabled (port is 0 or not set).")
		return nil, nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start progress feed on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: NewMux(state, hub)}
	logger.Info().Msgf("Progress feed is listening on http://%s", addr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Progress feed server error")
		}
		logger.Debug().Msg("Progress feed stopped.")
	}()
	return srv, nil
}
