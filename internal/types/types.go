package types

// PlatformView is the per-platform progress row shown in the scan grid.
type PlatformView struct {
	ID        string `json:"id"`
	Percent   int    `json:"percent"`
	Status    string `json:"status"`
	CountText string `json:"count_text"`
}

// ScanView is the read-only scan state rendered by the view layer and
// pushed over SSE while a scan is running.
type ScanView struct {
	Active         bool           `json:"active"`
	ProductID      string         `json:"product_id"`
	Phase          string         `json:"phase"`
	PhaseText      string         `json:"phase_text"`
	OverallPercent int            `json:"overall_percent"`
	Platforms      []PlatformView `json:"platforms"`
	Countdown      *int           `json:"countdown"`
	LastResult     *ScanSummary   `json:"last_result,omitempty"`
}

// ScanSummary is the completion record of a finished scan.
type ScanSummary struct {
	TotalPrompts      int     `json:"total_prompts"`
	SuccessfulPrompts int     `json:"successful_prompts"`
	MentionRate       float64 `json:"mention_rate"`
	CitationRate      float64 `json:"citation_rate"`
}

// QuotaView is the read-only quota state for gating and display.
type QuotaView struct {
	Current        int    `json:"current"`
	Limit          int    `json:"limit"`
	AvailableTests int    `json:"available_tests"`
	Plan           string `json:"plan"`
	IsUnlimited    bool   `json:"is_unlimited"`
}

// DiscoveryView is keyword-discovery progress. It follows the same shape
// as scan progress but is tracked separately from the scan session.
type DiscoveryView struct {
	Running bool   `json:"running"`
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}
