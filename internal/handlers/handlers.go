package handlers

import (
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/db"
	"github.com/brandlens/brandlens/internal/services"
)

// Handler holds all HTTP handlers
type Handler struct {
	db          *db.DB
	cfg         *config.Config
	engine      *backend.Client
	monitor     *services.Monitor
	webFS       fs.FS
	funcMap     template.FuncMap
	staticFS    fs.FS
	version     string
	disableCSRF bool
}

// New creates a new Handler
func New(database *db.DB, cfg *config.Config, engine *backend.Client, monitor *services.Monitor, webFS fs.FS, version string, disableCSRF bool) (*Handler, error) {
	funcMap := template.FuncMap{
		"formatTime":    formatTime,
		"formatRate":    formatRate,
		"derefString":   derefString,
		"derefInt":      derefInt,
		"statusLabel":   statusLabel,
		"formatQuota":   formatQuota,
		"containsValue": containsValue,
	}

	staticFS, err := fs.Sub(webFS, "static")
	if err != nil {
		return nil, err
	}

	return &Handler{
		db:          database,
		cfg:         cfg,
		engine:      engine,
		monitor:     monitor,
		webFS:       webFS,
		funcMap:     funcMap,
		staticFS:    staticFS,
		version:     version,
		disableCSRF: disableCSRF,
	}, nil
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))

	// Dashboard (scan screen)
	mux.HandleFunc("/", h.Dashboard)

	// Scan control
	mux.HandleFunc("/scan/start", h.StartScan)
	mux.HandleFunc("/scan/cancel", h.CancelScan)
	mux.HandleFunc("/scan/status", h.ScanStatus)

	// Keyword discovery
	mux.HandleFunc("/discovery/start", h.StartDiscovery)
	mux.HandleFunc("/discovery/status", h.DiscoveryStatus)

	// Platform login state
	mux.HandleFunc("/platforms", h.Platforms)

	// History
	mux.HandleFunc("/history", h.History)

	// Settings
	mux.HandleFunc("/settings", h.Settings)
	mux.HandleFunc("/settings/product", h.SaveProductConfig)

	// SSE
	mux.HandleFunc("/sse/scan", h.ScanSSE)
}

// render executes a page template with the base layout
func (h *Handler) render(w http.ResponseWriter, pageName string, data any) {
	tmpl, err := template.New("base.html").Funcs(h.funcMap).ParseFS(h.webFS, "templates/base.html", "templates/"+pageName)
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Template functions

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 1, 64) + "%"
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func statusLabel(status db.ScanStatus) string {
	switch status {
	case db.ScanStatusRunning:
		return "Running"
	case db.ScanStatusCompleted:
		return "Completed"
	case db.ScanStatusFailed:
		return "Failed"
	case db.ScanStatusCancelled:
		return "Cancelled"
	}
	return string(status)
}

// formatQuota renders "used/limit" with an infinity sign for unlimited
// plans.
func formatQuota(current, limit int, unlimited bool) string {
	if unlimited || limit == -1 {
		return strconv.Itoa(current) + "/∞"
	}
	return strconv.Itoa(current) + "/" + strconv.Itoa(limit)
}

func containsValue(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}
