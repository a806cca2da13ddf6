package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The server binds to localhost; cross-origin upgrades are accepted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	defaultStreamInterval = 60 * time.Second
	streamWriteTimeout    = 10 * time.Second
)

// Stream handles GET /v1/stream/{symbol}: a websocket that pushes the
// latest classified state on connect and then on every refresh interval.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	interval := defaultStreamInterval
	if raw := r.URL.Query().Get("interval_sec"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.writeError(w, r, http.StatusBadRequest, "bad_interval", "interval_sec must be a positive integer")
			return
		}
		interval = time.Duration(v) * time.Second
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Warn().Err(err).Str("symbol", symbol).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.StreamOpened()
		defer h.metrics.StreamClosed()
	}

	log.Info().Str("symbol", symbol).Dur("interval", interval).Msg("stream connected")

	// Reader goroutine: its only job is to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := h.service.State(r.Context(), symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("stream classification failed")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "classification failed"),
				time.Now().Add(streamWriteTimeout))
			return
		}

		h.observeClassification(symbol, view.AcceptedRegime)
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(view); err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("stream write failed")
			return
		}

		select {
		case <-ticker.C:
		case <-done:
			log.Info().Str("symbol", symbol).Msg("stream disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}
