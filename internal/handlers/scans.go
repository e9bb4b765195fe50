package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/brandlens/brandlens/internal/services"
)

// StartScan handles POST /scan/start
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	productID := r.FormValue("product_id")
	if productID == "" {
		redirectWithError(w, r, "Select a product first")
		return
	}

	if err := h.monitor.StartScan(r.Context(), productID); err != nil {
		redirectWithError(w, r, startErrorMessage(err))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startErrorMessage maps start failures to user-facing text. The
// missing-auth case lists the platforms so the message is actionable.
func startErrorMessage(err error) string {
	var missing *services.MissingAuthError
	switch {
	case errors.Is(err, services.ErrScanActive):
		return "A scan is already running"
	case errors.Is(err, services.ErrNoPrompts):
		return "This product has no prompts configured"
	case errors.Is(err, services.ErrQuotaExhausted):
		return "Daily test limit reached. Try again tomorrow."
	case errors.As(err, &missing):
		msg := "Log in to a platform first:"
		for _, p := range missing.Platforms {
			msg += " " + p
		}
		return msg
	}
	return err.Error()
}

// CancelScan handles POST /scan/cancel
func (h *Handler) CancelScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	// Cancel is optimistic; an engine error still leaves the local
	// session stopped, so the redirect is unconditional.
	h.monitor.CancelScan(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ScanStatus handles GET /scan/status, the JSON snapshot the frontend
// polls when SSE is unavailable.
func (h *Handler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Scan  any `json:"scan"`
		Quota any `json:"quota"`
	}{
		Scan:  h.monitor.ScanView(),
		Quota: h.monitor.QuotaView(),
	})
}

// StartDiscovery handles POST /discovery/start
func (h *Handler) StartDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	productID := r.FormValue("product_id")
	seed := r.FormValue("seed_keyword")
	if productID == "" || seed == "" {
		redirectWithError(w, r, "Product and seed keyword are required")
		return
	}

	result, err := h.monitor.StartDiscovery(r.Context(), productID, seed)
	if err != nil {
		redirectWithError(w, r, err.Error())
		return
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Discovery could not be started"
		}
		redirectWithError(w, r, msg)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DiscoveryStatus handles GET /discovery/status
func (h *Handler) DiscoveryStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.monitor.DiscoveryView())
}

func redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(msg), http.StatusSeeOther)
}
