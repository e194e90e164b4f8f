package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kitchencart/internal/engine"
)

// streamKeepAlive is how often an SSE comment is sent on an idle stream
// so intermediaries don't drop the connection.
const streamKeepAlive = 30 * time.Second

// handleStream feeds engine state changes to the client as server-sent
// events. Each published state is one "state" event; the current state
// is sent immediately on connect.
// GET /cart/stream
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	states, cancel := eng.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeState := func(state engine.State) bool {
		annotate(&state)
		data, err := json.Marshal(state)
		if err != nil {
			h.logger.Error("failed to encode stream state", "error", err.Error())
			return true
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeState(eng.State()) {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if !writeState(state) {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
