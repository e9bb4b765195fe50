package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/brandlens/brandlens/internal/types"
)

// ScanSSE handles SSE connections for scan progress. Each update is
// the full computed view, not a delta, so a client that drops frames
// still renders correctly.
func (h *Handler) ScanSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	updates := h.monitor.Subscribe()
	defer h.monitor.Unsubscribe(updates)

	// Send initial state
	h.sendScanView(w, flusher, h.monitor.ScanView())

	for {
		select {
		case <-r.Context().Done():
			return
		case view, ok := <-updates:
			if !ok {
				return
			}
			h.sendScanView(w, flusher, view)
			if !view.Active {
				h.sendEvent(w, flusher, "complete", fmt.Sprintf(`{"phase":%q}`, view.Phase))
			}
		}
	}
}

func (h *Handler) sendScanView(w http.ResponseWriter, flusher http.Flusher, view types.ScanView) {
	data, _ := json.Marshal(view)
	h.sendEvent(w, flusher, "progress", string(data))
}

func (h *Handler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
