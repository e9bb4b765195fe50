package handlers

import (
	"github.com/brandlens/brandlens/internal/db"
	"github.com/brandlens/brandlens/internal/types"
)

// View model structs for templates.
// These are separate from db models to allow formatting and presentation logic.

// DashboardData holds data for the dashboard (scan screen) template
type DashboardData struct {
	Title     string
	ActiveNav string
	CSRFToken string
	Scan      types.ScanView
	Quota     types.QuotaView
	Discovery types.DiscoveryView
	Recent    []*ScanHistoryView
	Products  []ProductView
	Error     string
}

// ProductView is a view model for a monitored product
type ProductView struct {
	ID    string
	Name  string
	Brand string
}

// ScanHistoryView is a view model for scan history rows
type ScanHistoryView struct {
	ID                int64
	ProductID         string
	Status            string
	StartedAt         string
	CompletedAt       string
	TotalPrompts      int
	SuccessfulPrompts int
	MentionRate       string
	CitationRate      string
	ErrorMessage      string
}

// toHistoryView converts a ScanRecord to a ScanHistoryView
func toHistoryView(rec *db.ScanRecord) *ScanHistoryView {
	view := &ScanHistoryView{
		ID:                rec.ID,
		ProductID:         rec.ProductID,
		Status:            statusLabel(rec.Status),
		StartedAt:         formatTime(rec.StartedAt),
		TotalPrompts:      rec.TotalPrompts,
		SuccessfulPrompts: rec.SuccessfulPrompts,
		MentionRate:       formatRate(rec.MentionRate),
		CitationRate:      formatRate(rec.CitationRate),
	}
	if rec.CompletedAt != nil {
		view.CompletedAt = formatTime(*rec.CompletedAt)
	}
	if rec.ErrorMessage != nil {
		view.ErrorMessage = *rec.ErrorMessage
	}
	return view
}

// HistoryData holds data for the history template
type HistoryData struct {
	Title     string
	ActiveNav string
	Records   []*ScanHistoryView
	Page      int
	HasMore   bool
	PrevPage  int
	NextPage  int
}

// PlatformsData holds data for the platform login state template
type PlatformsData struct {
	Title     string
	ActiveNav string
	Region    string
	Platforms []PlatformAuthView
}

// PlatformAuthView is a view model for one platform's login state
type PlatformAuthView struct {
	ID            string
	Name          string
	Authenticated bool
	LoginURL      string
}

// SettingsData holds data for the settings template
type SettingsData struct {
	Title         string
	ActiveNav     string
	CSRFToken     string
	RetentionDays int
	Version       string
	DBPath        string
	EngineURL     string
	Region        string
	Products      []ProductView
	Config        *db.ProductConfig
	Error         string
	Success       string
}
