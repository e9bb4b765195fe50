// Package services hosts the monitor: the service that owns scan
// session state, quota state and local persistence, and that sits
// between the HTTP/view layer and the engine boundary.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/db"
	"github.com/brandlens/brandlens/internal/quota"
	"github.com/brandlens/brandlens/internal/session"
	"github.com/brandlens/brandlens/internal/types"
)

var (
	ErrScanActive     = errors.New("a scan is already running")
	ErrNoPrompts      = errors.New("no prompts configured for this product")
	ErrQuotaExhausted = errors.New("daily test limit reached")
)

// MissingAuthError reports which platforms still need a login before a
// scan can start. The view layer renders the list as actionable items,
// so it is structured rather than flattened into a message.
type MissingAuthError struct {
	Region    string
	Platforms []string
}

func (e *MissingAuthError) Error() string {
	return fmt.Sprintf("no authenticated platforms in region %s (need login: %s)",
		e.Region, strings.Join(e.Platforms, ", "))
}

// subscriber wraps a channel with safe close handling
type subscriber struct {
	ch        chan types.ScanView
	closeOnce sync.Once
	closed    bool
}

func (sub *subscriber) close() {
	sub.closeOnce.Do(func() {
		sub.closed = true
		close(sub.ch)
	})
}

func (sub *subscriber) send(view types.ScanView) bool {
	if sub.closed {
		return false
	}
	select {
	case sub.ch <- view:
		return true
	default:
		return false
	}
}

// Monitor orchestrates scans against the engine and reconciles the
// feed events back into session, quota and history state. It is the
// ingress sink: every engine event lands here.
type Monitor struct {
	db      *db.DB
	engine  *backend.Client
	session *session.Session
	quota   *quota.Reconciler
	region  string

	mu        sync.Mutex
	recordID  int64
	user      *backend.AuthUser
	discovery types.DiscoveryView

	// SSE subscribers
	subMu       sync.RWMutex
	subscribers []*subscriber
}

// NewMonitor creates a monitor. region scopes platform auth lookups.
func NewMonitor(database *db.DB, engine *backend.Client, sess *session.Session, q *quota.Reconciler, region string) *Monitor {
	return &Monitor{
		db:      database,
		engine:  engine,
		session: sess,
		quota:   q,
		region:  region,
	}
}

// Subscribe subscribes to scan view updates.
func (m *Monitor) Subscribe() chan types.ScanView {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	sub := &subscriber{
		ch: make(chan types.ScanView, 10),
	}
	m.subscribers = append(m.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscriber.
func (m *Monitor) Unsubscribe(ch chan types.ScanView) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for i, sub := range m.subscribers {
		if sub.ch == ch {
			// Remove from slice first, then close safely
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			sub.close()
			break
		}
	}
}

// broadcast sends the current scan view to all subscribers.
func (m *Monitor) broadcast() {
	view := m.session.Snapshot()

	m.subMu.RLock()
	subs := make([]*subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.subMu.RUnlock()

	for _, sub := range subs {
		sub.send(view)
	}
}

// StartScan validates preconditions and asks the engine to begin a
// scan for the product. Progress then arrives through the event feed.
func (m *Monitor) StartScan(ctx context.Context, productID string) error {
	if m.session.Active() {
		return ErrScanActive
	}

	cfg, err := m.db.GetProductConfig(productID)
	if err != nil {
		return fmt.Errorf("load product config: %w", err)
	}

	platforms, err := m.readyPlatforms(cfg)
	if err != nil {
		return err
	}

	bundle, err := m.engine.FetchExtensionPrompts(ctx, productID)
	if err != nil {
		return fmt.Errorf("fetch prompts: %w", err)
	}
	if bundle.Quota != nil {
		m.quota.ApplyPromptCheck(*bundle.Quota)
	}
	if bundle.PromptCount == 0 {
		return ErrNoPrompts
	}

	// Unlimited is checked before the remaining count: an unlimited
	// plan can report zero remaining and must not be blocked by it.
	req := backend.StartScanRequest{
		ProductID:        productID,
		SamplesPerPrompt: cfg.SamplesPerPrompt,
		Platforms:        platforms,
	}
	if !m.quota.IsUnlimited() {
		available := m.quota.AvailableTests()
		if available <= 0 {
			return ErrQuotaExhausted
		}
		if needed := bundle.PromptCount * cfg.SamplesPerPrompt; available < needed {
			req.MaxTests = available
		}
	}

	epoch := m.session.Begin(productID)

	record, err := m.db.CreateScanRecord(productID, nil)
	if err != nil {
		log.Printf("monitor: record scan start: %v", err)
	} else {
		m.mu.Lock()
		m.recordID = record.ID
		m.mu.Unlock()
	}

	if err := m.engine.StartScan(ctx, req); err != nil {
		m.session.Fail(epoch, false)
		m.finishRecord(db.ScanStatusFailed, types.ScanSummary{}, err.Error())
		return fmt.Errorf("start scan: %w", err)
	}

	m.broadcast()
	return nil
}

// readyPlatforms returns the platforms a scan may run on: the region's
// authenticated set, narrowed to the product's configured platforms
// when it has any.
func (m *Monitor) readyPlatforms(cfg *db.ProductConfig) ([]string, error) {
	authed, err := m.db.AuthenticatedPlatforms(m.region)
	if err != nil {
		return nil, fmt.Errorf("load platform auth: %w", err)
	}

	ready := authed
	var missing []string
	if len(cfg.ReadyPlatforms) > 0 {
		authedSet := make(map[string]bool, len(authed))
		for _, p := range authed {
			authedSet[p] = true
		}
		ready = ready[:0]
		for _, p := range cfg.ReadyPlatforms {
			if authedSet[p] {
				ready = append(ready, p)
			} else {
				missing = append(missing, p)
			}
		}
	}

	if len(ready) == 0 {
		if len(missing) == 0 {
			missing = knownPlatforms()
		}
		sort.Strings(missing)
		return nil, &MissingAuthError{Region: m.region, Platforms: missing}
	}
	return ready, nil
}

func knownPlatforms() []string {
	return []string{"chatgpt", "claude", "gemini", "perplexity"}
}

// CancelScan stops the current scan. The local session deactivates
// immediately; the engine call is best effort and any late events for
// this scan are dropped by the session's active check.
func (m *Monitor) CancelScan(ctx context.Context) error {
	m.session.Cancel()
	m.finishRecord(db.ScanStatusCancelled, types.ScanSummary{}, "")
	m.broadcast()

	if err := m.engine.CancelScan(ctx); err != nil {
		log.Printf("monitor: engine cancel failed: %v", err)
		return err
	}
	return nil
}

// Resync reconciles local state with the engine, used at startup and
// after a feed reconnect. A scan found running is adopted into the
// session; otherwise any stale running history rows are closed out.
func (m *Monitor) Resync(ctx context.Context) {
	running, err := m.engine.IsScanRunning(ctx)
	if err != nil {
		log.Printf("monitor: resync check failed: %v", err)
		return
	}

	if running {
		progress, err := m.engine.GetScanProgress(ctx)
		if err != nil {
			log.Printf("monitor: resync progress failed: %v", err)
			return
		}
		productID := m.session.ProductID()
		m.session.Adopt(productID, progress)
		m.broadcast()
	} else if m.session.Active() {
		// Engine lost the scan (crash or restart). Close the view.
		m.session.Fail(m.session.Epoch(), false)
		m.finishRecord(db.ScanStatusFailed, types.ScanSummary{}, "engine restarted during scan")
		m.broadcast()
	}

	if err := m.db.AbandonRunningScans(m.currentRecordID()); err != nil {
		log.Printf("monitor: abandon stale scans: %v", err)
	}

	m.quota.Refresh(ctx)
}

func (m *Monitor) currentRecordID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordID
}

// finishRecord closes the current history row, if any.
func (m *Monitor) finishRecord(status db.ScanStatus, summary types.ScanSummary, errMsg string) {
	m.mu.Lock()
	id := m.recordID
	m.recordID = 0
	m.mu.Unlock()

	if id == 0 {
		return
	}
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	err := m.db.CompleteScanRecord(id, status,
		summary.TotalPrompts, summary.SuccessfulPrompts,
		summary.MentionRate, summary.CitationRate, msg)
	if err != nil {
		log.Printf("monitor: record scan finish: %v", err)
	}
}

// ============================================================================
// Ingress sink
// ============================================================================

// ScanStarted adopts a scan announced by the engine. A scan this app
// started is already active with the same product; one started
// elsewhere (auto-scan, another window) activates the session here.
func (m *Monitor) ScanStarted(e backend.ScanStarted) {
	if !m.session.Active() {
		m.session.Begin(e.ProductID)
		record, err := m.db.CreateScanRecord(e.ProductID, nil)
		if err != nil {
			log.Printf("monitor: record adopted scan: %v", err)
		} else {
			m.mu.Lock()
			m.recordID = record.ID
			m.mu.Unlock()
		}
	}
	m.quota.Notify()
	m.broadcast()
}

func (m *Monitor) ScanProgress(p session.Progress) {
	if m.session.ApplyProgress(m.session.Epoch(), p) {
		m.broadcast()
	}
}

func (m *Monitor) ScanCompleted(summary types.ScanSummary) {
	if !m.session.Complete(m.session.Epoch(), summary) {
		return
	}
	m.finishRecord(db.ScanStatusCompleted, summary, "")
	m.quota.Notify()
	m.broadcast()
}

func (m *Monitor) ScanFailed(message string, cancelled bool) {
	if !m.session.Fail(m.session.Epoch(), cancelled) {
		return
	}
	if cancelled {
		m.finishRecord(db.ScanStatusCancelled, types.ScanSummary{}, "")
	} else {
		m.finishRecord(db.ScanStatusFailed, types.ScanSummary{}, message)
	}
	m.broadcast()
}

func (m *Monitor) Countdown(seconds int) {
	if m.session.ApplyCountdown(m.session.Epoch(), seconds) {
		m.broadcast()
	}
}

func (m *Monitor) PlatformAuthChanged(c backend.AuthChange) {
	if err := m.db.UpsertPlatformAuth(c.Region, c.Platform, c.Authenticated); err != nil {
		log.Printf("monitor: persist platform auth: %v", err)
	}
}

func (m *Monitor) SignedIn(u backend.AuthUser) {
	m.mu.Lock()
	m.user = &u
	m.mu.Unlock()
	m.quota.Notify()
}

func (m *Monitor) DiscoveryProgress(v types.DiscoveryView) {
	m.mu.Lock()
	switch v.Phase {
	case "complete", "error", "cancelled":
		v.Running = false
	}
	m.discovery = v
	m.mu.Unlock()
}

// ============================================================================
// Views
// ============================================================================

// ScanView returns the current scan state for rendering.
func (m *Monitor) ScanView() types.ScanView {
	return m.session.Snapshot()
}

// QuotaView returns the current quota state for rendering.
func (m *Monitor) QuotaView() types.QuotaView {
	return m.quota.View()
}

// DiscoveryView returns the keyword-discovery state for rendering.
func (m *Monitor) DiscoveryView() types.DiscoveryView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discovery
}

// User returns the signed-in account, if any.
func (m *Monitor) User() *backend.AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// History returns recent scan history rows.
func (m *Monitor) History(limit, offset int) ([]*db.ScanRecord, error) {
	return m.db.ListScanRecords(limit, offset)
}

// StartDiscovery kicks off keyword discovery for a product.
func (m *Monitor) StartDiscovery(ctx context.Context, productID, seedKeyword string) (backend.DiscoveryResult, error) {
	m.mu.Lock()
	m.discovery = types.DiscoveryView{Running: true, Phase: "starting"}
	m.mu.Unlock()

	result, err := m.engine.StartDiscovery(ctx, productID, seedKeyword)
	if err != nil || !result.Success {
		m.mu.Lock()
		m.discovery = types.DiscoveryView{}
		m.mu.Unlock()
	}
	return result, err
}
