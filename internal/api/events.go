package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goodtune/flowtrack/internal/service"
	"github.com/rs/zerolog"
)

// eventsHandler streams "tracking-changed" server-sent events.
type eventsHandler struct {
	tracker   *service.Tracker
	heartbeat time.Duration
	logger    zerolog.Logger
}

func newEventsHandler(tracker *service.Tracker, heartbeat time.Duration, logger zerolog.Logger) *eventsHandler {
	return &eventsHandler{
		tracker:   tracker,
		heartbeat: heartbeat,
		logger:    logger.With().Str("handler", "events").Logger(),
	}
}

// Stream sends the session snapshot once on connect and again after every change.
func (h *eventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	changes, cancel := h.tracker.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.send(w); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := h.send(w); err != nil {
				h.logger.Debug().Err(err).Msg("Event client went away")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *eventsHandler) send(w http.ResponseWriter) error {
	data, err := json.Marshal(h.tracker.SessionInfo())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: tracking-changed\ndata: %s\n\n", data)
	return err
}
