package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/brandlens/brandlens/internal/db"
)

// Settings handles GET /settings
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	data := SettingsData{
		Title:         "Settings",
		ActiveNav:     "settings",
		CSRFToken:     h.getOrCreateCSRFToken(w, r),
		RetentionDays: h.cfg.RetentionDays,
		Version:       h.version,
		DBPath:        h.cfg.DBPath,
		EngineURL:     h.cfg.EngineURL,
		Region:        h.cfg.Region,
		Error:         r.URL.Query().Get("error"),
		Success:       r.URL.Query().Get("success"),
	}

	if status, err := h.engine.GetStatus(r.Context()); err == nil {
		for _, p := range status.Products {
			data.Products = append(data.Products, ProductView{ID: p.ID, Name: p.Name, Brand: p.Brand})
		}
	}

	productID := r.URL.Query().Get("product")
	if productID == "" && len(data.Products) > 0 {
		productID = data.Products[0].ID
	}
	if productID != "" {
		cfg, err := h.db.GetProductConfig(productID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		cfg.ProductID = productID
		data.Config = cfg
	}

	h.render(w, "settings.html", data)
}

// SaveProductConfig handles POST /settings/product
func (h *Handler) SaveProductConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.requireCSRF(w, r) {
		return
	}

	productID := r.FormValue("product_id")
	if productID == "" {
		http.Redirect(w, r, "/settings?error=Product+is+required", http.StatusSeeOther)
		return
	}

	// Start from the stored config so unsubmitted fields (daily scan
	// counters, schedule) survive the save.
	cfg, err := h.db.GetProductConfig(productID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cfg.ProductID = productID
	cfg.AutoRunEnabled = r.FormValue("auto_run") == "on"
	cfg.SamplesPerPrompt = formInt(r, "samples_per_prompt", cfg.SamplesPerPrompt, 1, 10)
	cfg.ScansPerDay = formInt(r, "scans_per_day", cfg.ScansPerDay, 1, 24)
	cfg.WindowStart = formInt(r, "window_start", cfg.WindowStart, 0, 23)
	cfg.WindowEnd = formInt(r, "window_end", cfg.WindowEnd, 1, 24)
	cfg.ReadyPlatforms = r.Form["platforms"]

	if expr := strings.TrimSpace(r.FormValue("cron_expression")); expr != "" {
		cfg.CronExpression = &expr
	} else {
		cfg.CronExpression = nil
	}

	if cfg.WindowEnd <= cfg.WindowStart {
		http.Redirect(w, r, "/settings?product="+productID+"&error=Window+end+must+be+after+start", http.StatusSeeOther)
		return
	}

	// A changed window or scan count invalidates today's placement;
	// clearing the date makes the scheduler recompute it on next tick.
	cfg.LastAutoScanDate = nil

	if err := h.saveConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/settings?product="+productID+"&success=Saved", http.StatusSeeOther)
}

func (h *Handler) saveConfig(cfg *db.ProductConfig) error {
	return h.db.UpsertProductConfig(cfg)
}

func formInt(r *http.Request, field string, def, min, max int) int {
	v, err := strconv.Atoi(r.FormValue(field))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
