// Package quota maintains the daily-usage snapshot: how many tests the
// user has left today. Updates arrive on two channels — an authoritative
// usage check and a best-effort change notification that triggers a
// debounced re-pull — and must never regress visible state.
package quota

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/brandlens/brandlens/internal/types"
)

const (
	// DefaultDebounce is the quiet period after a change notification
	// before the snapshot is re-pulled. A new notification restarts it.
	DefaultDebounce = 500 * time.Millisecond

	// First-load limit defaults. The general usage check uses the low
	// free-tier default; the product-scoped prompt fetch the looser one.
	defaultUsageLimit  = 5
	defaultPromptLimit = 30

	refreshTimeout = 10 * time.Second
)

// Snapshot is the reconciled quota state.
type Snapshot struct {
	Current            int
	Limit              int
	Remaining          int
	EffectiveRemaining *int
	PendingEvaluations *int
	Plan               string
	Unlimited          bool
}

// Update is a snapshot fresh from the backend boundary. Nil fields were
// absent from the response and leave the prior value in place.
type Update struct {
	Current            *int
	Limit              *int
	Remaining          *int
	EffectiveRemaining *int
	PendingEvaluations *int
	Plan               string
	Unlimited          *bool
}

// RefreshFunc pulls a full usage snapshot from the backend.
type RefreshFunc func(ctx context.Context) (Update, error)

// Reconciler merges quota updates from both channels. Only the
// reconciler writes the snapshot; everything else reads views.
type Reconciler struct {
	mu        sync.RWMutex
	snap      Snapshot
	populated bool

	refresh   RefreshFunc
	debounced func(func())
}

// New creates a reconciler. window <= 0 selects DefaultDebounce.
func New(refresh RefreshFunc, window time.Duration) *Reconciler {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Reconciler{
		snap: Snapshot{
			Limit:     defaultUsageLimit,
			Remaining: defaultUsageLimit,
		},
		refresh:   refresh,
		debounced: debounce.New(window),
	}
}

// ApplyUsage applies a snapshot from the general usage check.
func (r *Reconciler) ApplyUsage(u Update) {
	r.apply(u, defaultUsageLimit)
}

// ApplyPromptCheck applies the quota embedded in a prompt-fetch
// response, an opportunistic refresh that saves a round trip.
func (r *Reconciler) ApplyPromptCheck(u Update) {
	r.apply(u, defaultPromptLimit)
}

func (r *Reconciler) apply(u Update, fallbackLimit int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.Current != nil {
		r.snap.Current = *u.Current
	}
	if u.Limit != nil {
		r.snap.Limit = *u.Limit
	} else if !r.populated {
		r.snap.Limit = fallbackLimit
	}
	if u.Remaining != nil {
		r.snap.Remaining = *u.Remaining
	} else if !r.populated {
		r.snap.Remaining = r.snap.Limit - r.snap.Current
	}
	if u.EffectiveRemaining != nil {
		v := *u.EffectiveRemaining
		r.snap.EffectiveRemaining = &v
	}
	if u.PendingEvaluations != nil {
		v := *u.PendingEvaluations
		r.snap.PendingEvaluations = &v
	}
	if u.Plan != "" {
		r.snap.Plan = u.Plan
	}
	if u.Unlimited != nil {
		r.snap.Unlimited = *u.Unlimited
	}
	r.populated = true
}

// Notify records a change notification. Bursts are coalesced: the
// refresh runs once, after the debounce window passes with no further
// signal.
func (r *Reconciler) Notify() {
	r.debounced(r.runRefresh)
}

// Refresh pulls the snapshot immediately, bypassing the debounce.
func (r *Reconciler) Refresh(ctx context.Context) {
	if r.refresh == nil {
		return
	}
	u, err := r.refresh(ctx)
	if err != nil {
		// Stale-but-available: keep the last-known snapshot.
		log.Printf("quota: refresh failed: %v", err)
		return
	}
	r.ApplyUsage(u)
}

func (r *Reconciler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	r.Refresh(ctx)
}

// IsUnlimited reports whether remaining-based gating is bypassed.
// Either the explicit flag or the -1 limit sentinel means unlimited.
func (r *Reconciler) IsUnlimited() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Unlimited || r.snap.Limit == -1
}

// AvailableTests is the single field gating decisions read. Pending
// evaluations reserve capacity the raw remaining does not yet reflect,
// so the effective value wins when present.
func (r *Reconciler) AvailableTests() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap.EffectiveRemaining != nil {
		return *r.snap.EffectiveRemaining
	}
	return r.snap.Remaining
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := r.snap
	if r.snap.EffectiveRemaining != nil {
		v := *r.snap.EffectiveRemaining
		snap.EffectiveRemaining = &v
	}
	if r.snap.PendingEvaluations != nil {
		v := *r.snap.PendingEvaluations
		snap.PendingEvaluations = &v
	}
	return snap
}

// View returns the display state for the quota widget.
func (r *Reconciler) View() types.QuotaView {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()

	available := snap.Remaining
	if snap.EffectiveRemaining != nil {
		available = *snap.EffectiveRemaining
	}
	return types.QuotaView{
		Current:        snap.Current,
		Limit:          snap.Limit,
		AvailableTests: available,
		Plan:           snap.Plan,
		IsUnlimited:    snap.Unlimited || snap.Limit == -1,
	}
}
