package handlers

import (
	"log"
	"net/http"
)

// Dashboard handles GET /
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := DashboardData{
		ActiveNav: "dashboard",
		CSRFToken: h.getOrCreateCSRFToken(w, r),
		Scan:      h.monitor.ScanView(),
		Quota:     h.monitor.QuotaView(),
		Discovery: h.monitor.DiscoveryView(),
		Error:     r.URL.Query().Get("error"),
	}

	records, err := h.monitor.History(5, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, rec := range records {
		data.Recent = append(data.Recent, toHistoryView(rec))
	}

	// Products come from the engine; the dashboard still renders when
	// it is unreachable, just without the product picker.
	if status, err := h.engine.GetStatus(r.Context()); err == nil {
		for _, p := range status.Products {
			data.Products = append(data.Products, ProductView{ID: p.ID, Name: p.Name, Brand: p.Brand})
		}
	} else {
		log.Printf("handlers: engine status unavailable: %v", err)
	}

	h.render(w, "dashboard.html", data)
}
