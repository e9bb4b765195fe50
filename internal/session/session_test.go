package session

import (
	"testing"

	"github.com/brandlens/brandlens/internal/types"
)

func intPtr(v int) *int { return &v }

func TestBeginResetsState(t *testing.T) {
	s := New()
	epoch := s.Begin("prod-1")

	s.ApplyProgress(epoch, Progress{
		Phase:     PhaseSubmitting,
		Platforms: map[string]PlatformCounter{"chatgpt": {Total: 5, Submitted: 5}},
	})
	s.Complete(epoch, types.ScanSummary{TotalPrompts: 5, SuccessfulPrompts: 5})

	if s.Snapshot().LastResult == nil {
		t.Fatal("expected last result after completion")
	}

	epoch2 := s.Begin("prod-2")
	if epoch2 <= epoch {
		t.Errorf("epoch did not increase: %d -> %d", epoch, epoch2)
	}

	view := s.Snapshot()
	if !view.Active {
		t.Error("session not active after Begin")
	}
	if view.ProductID != "prod-2" {
		t.Errorf("product = %q, want prod-2", view.ProductID)
	}
	if view.Phase != PhaseInitializing {
		t.Errorf("phase = %q, want initializing", view.Phase)
	}
	if len(view.Platforms) != 0 {
		t.Errorf("platforms not cleared: %v", view.Platforms)
	}
	if view.LastResult != nil {
		t.Error("last result not cleared by Begin")
	}
}

func TestApplyProgressReplacesPlatforms(t *testing.T) {
	s := New()
	epoch := s.Begin("prod-1")

	s.ApplyProgress(epoch, Progress{
		Phase: PhaseCollecting,
		Platforms: map[string]PlatformCounter{
			"chatgpt": {Status: "collecting", Total: 5, Submitted: 5},
			"claude":  {Status: "collecting", Total: 5, Submitted: 5},
		},
	})

	// Next snapshot omits claude: replace semantics must drop it from
	// the grid rather than leaving a stale entry.
	s.ApplyProgress(epoch, Progress{
		Phase: PhaseCollecting,
		Platforms: map[string]PlatformCounter{
			"chatgpt": {Status: "complete", Total: 5, Submitted: 5, Collected: 5},
		},
	})

	view := s.Snapshot()
	if len(view.Platforms) != 1 {
		t.Fatalf("platforms = %d entries, want 1", len(view.Platforms))
	}
	if view.Platforms[0].ID != "chatgpt" {
		t.Errorf("remaining platform = %q, want chatgpt", view.Platforms[0].ID)
	}
}

func TestCountdownZeroVsAbsent(t *testing.T) {
	s := New()
	epoch := s.Begin("prod-1")

	s.ApplyProgress(epoch, Progress{Phase: PhaseWaiting, CountdownSeconds: intPtr(45)})
	if view := s.Snapshot(); view.Countdown == nil || *view.Countdown != 45 {
		t.Fatalf("countdown = %v, want 45", view.Countdown)
	}

	// Zero is a real countdown value, not "absent".
	s.ApplyProgress(epoch, Progress{Phase: PhaseWaiting, CountdownSeconds: intPtr(0)})
	if view := s.Snapshot(); view.Countdown == nil || *view.Countdown != 0 {
		t.Fatalf("countdown = %v, want 0", view.Countdown)
	}

	// Absent clears the display.
	s.ApplyProgress(epoch, Progress{Phase: PhaseCollecting})
	if view := s.Snapshot(); view.Countdown != nil {
		t.Fatalf("countdown = %d, want cleared", *view.Countdown)
	}
}

func TestStaleEpochDropped(t *testing.T) {
	s := New()
	stale := s.Begin("prod-1")
	s.Cancel()
	current := s.Begin("prod-1")

	if applied := s.ApplyProgress(stale, Progress{
		Phase:     PhaseSubmitting,
		Platforms: map[string]PlatformCounter{"chatgpt": {Total: 5, Submitted: 5}},
	}); applied {
		t.Error("progress for stale epoch was applied")
	}
	if applied := s.Complete(stale, types.ScanSummary{TotalPrompts: 5}); applied {
		t.Error("completion for stale epoch was applied")
	}

	view := s.Snapshot()
	if view.Phase != PhaseInitializing {
		t.Errorf("phase = %q, stale event leaked through", view.Phase)
	}
	if !view.Active {
		t.Error("current session deactivated by stale event")
	}
	_ = current
}

func TestCancelStopsLateEvents(t *testing.T) {
	s := New()
	epoch := s.Begin("prod-1")
	s.Cancel()

	// A late progress event for the cancelled scan must not resurrect
	// the scanning view.
	if applied := s.ApplyProgress(epoch, Progress{Phase: PhaseCollecting}); applied {
		t.Error("progress applied after cancel")
	}

	view := s.Snapshot()
	if view.Active {
		t.Error("session active after cancel")
	}
	if view.Phase != PhaseCancelled {
		t.Errorf("phase = %q, want cancelled", view.Phase)
	}
}

func TestCompletePopulatesResult(t *testing.T) {
	s := New()
	epoch := s.Begin("prod-1")

	summary := types.ScanSummary{
		TotalPrompts:      10,
		SuccessfulPrompts: 9,
		MentionRate:       55.5,
		CitationRate:      22.2,
	}
	if !s.Complete(epoch, summary) {
		t.Fatal("completion not applied")
	}

	view := s.Snapshot()
	if view.Active {
		t.Error("session still active after completion")
	}
	if view.Phase != PhaseComplete {
		t.Errorf("phase = %q, want complete", view.Phase)
	}
	if view.LastResult == nil || *view.LastResult != summary {
		t.Errorf("last result = %+v, want %+v", view.LastResult, summary)
	}
}

func TestAdoptRunningScan(t *testing.T) {
	s := New()
	epoch := s.Adopt("prod-1", Progress{
		Phase: PhaseCollecting,
		Platforms: map[string]PlatformCounter{
			"chatgpt": {Status: "collecting", Total: 10, Submitted: 10, Collected: 4},
		},
	})

	view := s.Snapshot()
	if !view.Active {
		t.Error("adopted session not active")
	}
	if view.Phase != PhaseCollecting {
		t.Errorf("phase = %q, want collecting", view.Phase)
	}
	if view.OverallPercent != 70 {
		t.Errorf("overall percent = %d, want 70", view.OverallPercent)
	}
	if epoch != s.Epoch() {
		t.Errorf("Adopt returned epoch %d, current is %d", epoch, s.Epoch())
	}
}

func TestEndToEndTwoPlatforms(t *testing.T) {
	// Two platforms, five prompts each: all submitted -> 50%, all
	// collected -> 100%, then completion records the summary.
	s := New()
	epoch := s.Begin("prod-1")

	s.ApplyProgress(epoch, Progress{
		Phase: PhaseSubmitting,
		Platforms: map[string]PlatformCounter{
			"chatgpt": {Status: "submitting", Total: 5, Submitted: 5},
			"claude":  {Status: "submitting", Total: 5, Submitted: 5},
		},
	})
	if got := s.Snapshot().OverallPercent; got != 50 {
		t.Errorf("after submissions: percent = %d, want 50", got)
	}

	s.ApplyProgress(epoch, Progress{
		Phase: PhaseCollecting,
		Platforms: map[string]PlatformCounter{
			"chatgpt": {Status: "complete", Total: 5, Submitted: 5, Collected: 5},
			"claude":  {Status: "complete", Total: 5, Submitted: 5, Collected: 5},
		},
	})
	if got := s.Snapshot().OverallPercent; got != 100 {
		t.Errorf("after collections: percent = %d, want 100", got)
	}

	s.Complete(epoch, types.ScanSummary{TotalPrompts: 10, SuccessfulPrompts: 10})
	view := s.Snapshot()
	if view.Phase != PhaseComplete {
		t.Errorf("phase = %q, want complete", view.Phase)
	}
	if view.LastResult == nil {
		t.Fatal("last result not populated")
	}
	if view.LastResult.SuccessfulPrompts != 10 {
		t.Errorf("successful prompts = %d, want 10", view.LastResult.SuccessfulPrompts)
	}
}

func TestPlatformViewCountText(t *testing.T) {
	s := New()
	epoch := s.Begin("prod-1")
	s.ApplyProgress(epoch, Progress{
		Phase: PhaseCollecting,
		Platforms: map[string]PlatformCounter{
			"gemini": {Status: "collecting", Total: 8, Submitted: 8, Collected: 3},
		},
	})

	view := s.Snapshot()
	if len(view.Platforms) != 1 {
		t.Fatalf("platforms = %d entries, want 1", len(view.Platforms))
	}
	p := view.Platforms[0]
	if p.CountText != "3/8" {
		t.Errorf("count text = %q, want 3/8", p.CountText)
	}
	if p.Status != "collecting" {
		t.Errorf("status = %q, want collecting", p.Status)
	}
	if p.Percent != 69 { // (8+3)/16 = 68.75
		t.Errorf("percent = %d, want 69", p.Percent)
	}
}
