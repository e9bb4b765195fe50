package session

import (
	"fmt"
	"math"
	"sort"

	"github.com/brandlens/brandlens/internal/types"
)

// PlatformCounter is the per-platform progress snapshot reported by the
// engine. Counter invariants (submitted <= total etc.) are expected but
// not enforced; derived percentages are clamped instead.
type PlatformCounter struct {
	Status    string
	Total     int
	Submitted int
	Collected int
	Failed    int
}

// Progress is a complete progress snapshot from the engine. Each event
// carries the full platform map, not a delta.
type Progress struct {
	Phase            string
	Platforms        map[string]PlatformCounter
	CountdownSeconds *int
}

// Scan phases reported by the engine. The phase string is copied through
// verbatim; anything outside this set gets the generic display text.
const (
	PhaseInitializing = "initializing"
	PhaseSubmitting   = "submitting"
	PhaseWaiting      = "waiting"
	PhaseCollecting   = "collecting"
	PhaseComplete     = "complete"
	PhaseCancelled    = "cancelled"
)

var phaseText = map[string]string{
	PhaseInitializing: "Initializing scan...",
	PhaseSubmitting:   "Submitting prompts...",
	PhaseWaiting:      "Waiting for responses...",
	PhaseCollecting:   "Collecting responses...",
	PhaseComplete:     "Scan complete",
	PhaseCancelled:    "Scan cancelled",
}

// PhaseText maps an engine phase to display text. Unknown phases fall
// back to a generic label rather than failing.
func PhaseText(phase string) string {
	if text, ok := phaseText[phase]; ok {
		return text
	}
	return "Processing..."
}

// OverallPercent folds the platform counters into a single 0-100 value.
// Submissions are the first half of the work and collections the second,
// regardless of platform mix.
func OverallPercent(platforms map[string]PlatformCounter) int {
	var submitted, collected, total int
	for _, c := range platforms {
		submitted += c.Submitted
		collected += c.Collected
		total += c.Total
	}
	if total <= 0 {
		return 0
	}
	pct := float64(submitted)/float64(total)*50 + float64(collected)/float64(total)*50
	return clampPercent(int(math.Round(pct)))
}

// PlatformPercent applies the same half-half weighting at platform
// granularity.
func PlatformPercent(c PlatformCounter) int {
	if c.Total <= 0 {
		return 0
	}
	pct := float64(c.Submitted+c.Collected) / float64(c.Total*2) * 100
	return clampPercent(int(math.Round(pct)))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// platformViews builds the sorted display rows for the scan grid.
func platformViews(platforms map[string]PlatformCounter) []types.PlatformView {
	views := make([]types.PlatformView, 0, len(platforms))
	for id, c := range platforms {
		views = append(views, types.PlatformView{
			ID:        id,
			Percent:   PlatformPercent(c),
			Status:    c.Status,
			CountText: fmt.Sprintf("%d/%d", c.Collected, c.Total),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}
