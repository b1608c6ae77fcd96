package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleRecentEvents streams the recently-played list as server-sent events.
// A new event is sent after every committed change that affects it.
func (ms *MediaServer) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	sub := ms.Catalog.ObserveRecentlyPlayed(r.Context())
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snap := range sub.Updates() {
		event, payload := "recent", any(nonNil(snap.Value))
		if snap.Err != nil {
			ms.logger.WithError(snap.Err).Warn("Recently played query failed")
			event, payload = "error", map[string]string{"error": "query failed"}
		}

		data, err := json.Marshal(payload)
		if err != nil {
			ms.logger.WithError(err).Error("Failed to encode event")
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return
		}
		flusher.Flush()
	}
}
