package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// StreamEvent represents a server-sent event.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// handleDebateStream streams live session metadata using Server-Sent
// Events until the session reaches a terminal state.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("New debate stream connection", "id", id, "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess, err := h.manager.Get(id)
	if err != nil {
		h.sendSSEError(w, flusher, "Debate not found")
		return
	}

	// Send the current snapshot immediately.
	last := sess.LiveMetadata()
	h.sendSSEEvent(w, flusher, "metadata", last)

	if last.State.IsTerminal() {
		if result, rerr := sess.Result(); rerr == nil {
			h.sendSSEEvent(w, flusher, "debate_complete", result)
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stream context done", "id", id)
			return

		case <-sess.Done():
			if result, rerr := sess.Result(); rerr == nil {
				h.sendSSEEvent(w, flusher, "debate_complete", result)
			} else {
				h.sendSSEEvent(w, flusher, "debate_failed", sess.LiveMetadata())
			}
			return

		case <-ticker.C:
			meta := sess.LiveMetadata()
			if meta.State != last.State || meta.CurrentRound != last.CurrentRound || meta.ArgumentCount != last.ArgumentCount {
				h.sendSSEEvent(w, flusher, "metadata", meta)
				last = meta
			}
		}
	}
}

func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	event := StreamEvent{Type: eventType, Data: data}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal SSE event", "type", eventType, "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, message string) {
	h.sendSSEEvent(w, flusher, "error", map[string]string{"message": message})
}
