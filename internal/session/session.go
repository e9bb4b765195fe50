// Package session holds the scan session state: current phase,
// per-platform counters, countdown and last completed result. All
// mutation goes through the reconciler methods; everything else reads
// snapshots.
package session

import (
	"sync"

	"github.com/brandlens/brandlens/internal/types"
)

// Session is the single process-wide scan session record. Each started
// scan gets a monotonically increasing epoch; mutations carry the epoch
// observed at dispatch time and are dropped once it no longer matches,
// so late events from a cancelled scan cannot resurrect the scanning
// view.
type Session struct {
	mu         sync.RWMutex
	epoch      int64
	active     bool
	productID  string
	phase      string
	platforms  map[string]PlatformCounter
	countdown  *int
	lastResult *types.ScanSummary
}

// New creates an inert session. It becomes live on Begin or Adopt.
func New() *Session {
	return &Session{
		platforms: make(map[string]PlatformCounter),
	}
}

// Begin resets the session for a new scan and returns the new epoch.
func (s *Session) Begin(productID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.active = true
	s.productID = productID
	s.phase = PhaseInitializing
	s.platforms = make(map[string]PlatformCounter)
	s.countdown = nil
	s.lastResult = nil
	return s.epoch
}

// Adopt resynchronizes from a progress snapshot of a scan discovered
// already running (e.g. at startup). Returns the adopted epoch.
func (s *Session) Adopt(productID string, p Progress) int64 {
	epoch := s.Begin(productID)
	s.ApplyProgress(epoch, p)
	return epoch
}

// Epoch returns the current session epoch.
func (s *Session) Epoch() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Active reports whether a scan is currently running locally.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ProductID returns the product the current session belongs to.
func (s *Session) ProductID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productID
}

// ApplyProgress replaces the session's platform snapshot with the
// payload's. Replace, not merge: platforms absent from the payload drop
// out of the grid. A nil countdown clears any prior countdown; zero is a
// real value and is kept. Reports whether the update was applied.
func (s *Session) ApplyProgress(epoch int64, p Progress) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || !s.active {
		return false
	}

	s.phase = p.Phase
	platforms := make(map[string]PlatformCounter, len(p.Platforms))
	for id, c := range p.Platforms {
		platforms[id] = c
	}
	s.platforms = platforms
	if p.CountdownSeconds != nil {
		v := *p.CountdownSeconds
		s.countdown = &v
	} else {
		s.countdown = nil
	}
	return true
}

// ApplyCountdown updates only the countdown display.
func (s *Session) ApplyCountdown(epoch int64, seconds int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || !s.active {
		return false
	}
	s.countdown = &seconds
	return true
}

// Complete marks the session finished and records the result summary.
func (s *Session) Complete(epoch int64, summary types.ScanSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}

	s.active = false
	s.phase = PhaseComplete
	s.countdown = nil
	result := summary
	s.lastResult = &result
	return true
}

// Fail terminates the session after a runtime error. When cancelled is
// true the phase flips to cancelled; otherwise the last phase is kept
// for display and only the running flag is cleared.
func (s *Session) Fail(epoch int64, cancelled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}

	s.active = false
	s.countdown = nil
	if cancelled {
		s.phase = PhaseCancelled
	}
	return true
}

// Cancel optimistically deactivates the current session without waiting
// for a terminal event from the engine. The epoch stays, so any late
// progress for this scan is dropped by the active check.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	s.phase = PhaseCancelled
	s.countdown = nil
}

// Snapshot returns the computed view state for rendering.
func (s *Session) Snapshot() types.ScanView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := types.ScanView{
		Active:         s.active,
		ProductID:      s.productID,
		Phase:          s.phase,
		PhaseText:      PhaseText(s.phase),
		OverallPercent: OverallPercent(s.platforms),
		Platforms:      platformViews(s.platforms),
	}
	if s.countdown != nil {
		v := *s.countdown
		view.Countdown = &v
	}
	if s.lastResult != nil {
		result := *s.lastResult
		view.LastResult = &result
	}
	return view
}
