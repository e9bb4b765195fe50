package db

import (
	"time"
)

// ScanStatus is the recorded state of a scan in local history.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// ScanRecord is one row of local scan history.
type ScanRecord struct {
	ID                int64
	ProductID         string
	EngineSessionID   *string
	Status            ScanStatus
	StartedAt         time.Time
	CompletedAt       *time.Time
	TotalPrompts      int
	SuccessfulPrompts int
	MentionRate       float64
	CitationRate      float64
	ErrorMessage      *string
}

// ProductConfig is the per-product auto-scan configuration. Scheduled
// times are hours of day computed from the window and scan count;
// CronExpression, when set, overrides the window schedule entirely.
type ProductConfig struct {
	ProductID        string
	AutoRunEnabled   bool
	SamplesPerPrompt int
	ScansPerDay      int
	WindowStart      int // hour of day, inclusive
	WindowEnd        int // hour of day, exclusive
	CronExpression   *string
	ReadyPlatforms   []string
	LastAutoScanDate *string // YYYY-MM-DD
	ScansToday       int
	ScheduledTimes   []int
	UpdatedAt        time.Time
}

// PlatformAuth caches the engine-reported login state of a platform in
// a region. Fed by platform-auth-changed events.
type PlatformAuth struct {
	Region        string
	Platform      string
	Authenticated bool
	UpdatedAt     time.Time
}
