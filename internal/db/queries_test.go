package db

import (
	"path/filepath"
	"reflect"
	"testing"
)

// testDB creates a temporary database for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func strPtr(s string) *string { return &s }

// ============================================================================
// ScanRecord Tests
// ============================================================================

func TestScanRecordLifecycle(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateScanRecord("prod-1", strPtr("sess-abc"))
	if err != nil {
		t.Fatalf("CreateScanRecord failed: %v", err)
	}
	if created.Status != ScanStatusRunning {
		t.Errorf("status = %q, want running", created.Status)
	}
	if created.EngineSessionID == nil || *created.EngineSessionID != "sess-abc" {
		t.Errorf("engine session = %v, want sess-abc", created.EngineSessionID)
	}

	if err := db.CompleteScanRecord(created.ID, ScanStatusCompleted, 20, 18, 45.5, 10.0, nil); err != nil {
		t.Fatalf("CompleteScanRecord failed: %v", err)
	}

	got, err := db.GetScanRecord(created.ID)
	if err != nil {
		t.Fatalf("GetScanRecord failed: %v", err)
	}
	if got.Status != ScanStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.TotalPrompts != 20 || got.SuccessfulPrompts != 18 {
		t.Errorf("counts = %d/%d, want 18/20", got.SuccessfulPrompts, got.TotalPrompts)
	}
	if got.MentionRate != 45.5 {
		t.Errorf("mention rate = %v, want 45.5", got.MentionRate)
	}
}

func TestScanRecordFailureMessage(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateScanRecord("prod-1", nil)
	if err != nil {
		t.Fatalf("CreateScanRecord failed: %v", err)
	}

	if err := db.CompleteScanRecord(created.ID, ScanStatusFailed, 0, 0, 0, 0, strPtr("Network request failed")); err != nil {
		t.Fatalf("CompleteScanRecord failed: %v", err)
	}

	got, err := db.GetScanRecord(created.ID)
	if err != nil {
		t.Fatalf("GetScanRecord failed: %v", err)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "Network request failed" {
		t.Errorf("error message = %v", got.ErrorMessage)
	}
}

func TestGetActiveScanRecord(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetActiveScanRecord(); err == nil {
		t.Error("expected no-rows error with empty history")
	}

	first, _ := db.CreateScanRecord("prod-1", nil)
	db.CompleteScanRecord(first.ID, ScanStatusCancelled, 0, 0, 0, 0, nil)
	second, _ := db.CreateScanRecord("prod-2", nil)

	active, err := db.GetActiveScanRecord()
	if err != nil {
		t.Fatalf("GetActiveScanRecord failed: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("active = %d, want %d", active.ID, second.ID)
	}
}

func TestAbandonRunningScans(t *testing.T) {
	db := testDB(t)

	stale, _ := db.CreateScanRecord("prod-1", nil)
	keep, _ := db.CreateScanRecord("prod-2", nil)

	if err := db.AbandonRunningScans(keep.ID); err != nil {
		t.Fatalf("AbandonRunningScans failed: %v", err)
	}

	got, _ := db.GetScanRecord(stale.ID)
	if got.Status != ScanStatusFailed {
		t.Errorf("stale status = %q, want failed", got.Status)
	}
	got, _ = db.GetScanRecord(keep.ID)
	if got.Status != ScanStatusRunning {
		t.Errorf("kept status = %q, want running", got.Status)
	}
}

func TestListScanRecordsOrder(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		if _, err := db.CreateScanRecord("prod-1", nil); err != nil {
			t.Fatalf("CreateScanRecord failed: %v", err)
		}
	}

	records, err := db.ListScanRecords(10, 0)
	if err != nil {
		t.Fatalf("ListScanRecords failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	// Newest first
	if records[0].ID < records[1].ID || records[1].ID < records[2].ID {
		t.Errorf("records not newest-first: %d, %d, %d", records[0].ID, records[1].ID, records[2].ID)
	}
}

// ============================================================================
// ProductConfig Tests
// ============================================================================

func TestProductConfigDefaults(t *testing.T) {
	db := testDB(t)

	cfg, err := db.GetProductConfig("prod-unknown")
	if err != nil {
		t.Fatalf("GetProductConfig failed: %v", err)
	}
	if cfg.AutoRunEnabled {
		t.Error("auto-run enabled by default")
	}
	if cfg.SamplesPerPrompt != 1 || cfg.ScansPerDay != 1 {
		t.Errorf("defaults = samples %d, scans %d, want 1/1", cfg.SamplesPerPrompt, cfg.ScansPerDay)
	}
	if cfg.WindowStart != 9 || cfg.WindowEnd != 17 {
		t.Errorf("window = %d-%d, want 9-17", cfg.WindowStart, cfg.WindowEnd)
	}
}

func TestProductConfigRoundTrip(t *testing.T) {
	db := testDB(t)

	cfg := &ProductConfig{
		ProductID:        "prod-1",
		AutoRunEnabled:   true,
		SamplesPerPrompt: 2,
		ScansPerDay:      3,
		WindowStart:      8,
		WindowEnd:        20,
		CronExpression:   strPtr("0 */4 * * *"),
		ReadyPlatforms:   []string{"chatgpt", "claude"},
		LastAutoScanDate: strPtr("2026-08-25"),
		ScansToday:       1,
		ScheduledTimes:   []int{10, 14, 18},
	}
	if err := db.UpsertProductConfig(cfg); err != nil {
		t.Fatalf("UpsertProductConfig failed: %v", err)
	}

	got, err := db.GetProductConfig("prod-1")
	if err != nil {
		t.Fatalf("GetProductConfig failed: %v", err)
	}
	if !got.AutoRunEnabled {
		t.Error("auto-run not persisted")
	}
	if !reflect.DeepEqual(got.ReadyPlatforms, cfg.ReadyPlatforms) {
		t.Errorf("platforms = %v, want %v", got.ReadyPlatforms, cfg.ReadyPlatforms)
	}
	if !reflect.DeepEqual(got.ScheduledTimes, cfg.ScheduledTimes) {
		t.Errorf("scheduled times = %v, want %v", got.ScheduledTimes, cfg.ScheduledTimes)
	}
	if got.CronExpression == nil || *got.CronExpression != "0 */4 * * *" {
		t.Errorf("cron = %v", got.CronExpression)
	}

	// Update in place
	cfg.ScansToday = 2
	cfg.ScheduledTimes = []int{11}
	if err := db.UpsertProductConfig(cfg); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	got, _ = db.GetProductConfig("prod-1")
	if got.ScansToday != 2 || len(got.ScheduledTimes) != 1 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestListProductConfigsOrdering(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"prod-c", "prod-a", "prod-b"} {
		if err := db.UpsertProductConfig(&ProductConfig{ProductID: id, SamplesPerPrompt: 1, ScansPerDay: 1}); err != nil {
			t.Fatalf("upsert %s failed: %v", id, err)
		}
	}

	configs, err := db.ListProductConfigs()
	if err != nil {
		t.Fatalf("ListProductConfigs failed: %v", err)
	}
	if len(configs) != 3 {
		t.Fatalf("configs = %d, want 3", len(configs))
	}
	// Stable ordering keeps schedule distribution consistent across runs
	want := []string{"prod-a", "prod-b", "prod-c"}
	for i, cfg := range configs {
		if cfg.ProductID != want[i] {
			t.Errorf("configs[%d] = %q, want %q", i, cfg.ProductID, want[i])
		}
	}
}

// ============================================================================
// PlatformAuth Tests
// ============================================================================

func TestPlatformAuthUpsert(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertPlatformAuth("us", "chatgpt", true); err != nil {
		t.Fatalf("UpsertPlatformAuth failed: %v", err)
	}
	if err := db.UpsertPlatformAuth("us", "claude", false); err != nil {
		t.Fatalf("UpsertPlatformAuth failed: %v", err)
	}

	ok, err := db.IsPlatformAuthenticated("us", "chatgpt")
	if err != nil || !ok {
		t.Errorf("chatgpt auth = %v, %v, want true", ok, err)
	}
	ok, _ = db.IsPlatformAuthenticated("us", "claude")
	if ok {
		t.Error("claude reported authenticated")
	}
	ok, _ = db.IsPlatformAuthenticated("de", "chatgpt")
	if ok {
		t.Error("unknown region reported authenticated")
	}

	// Flip state
	db.UpsertPlatformAuth("us", "chatgpt", false)
	ok, _ = db.IsPlatformAuthenticated("us", "chatgpt")
	if ok {
		t.Error("auth flip not applied")
	}
}

func TestAuthenticatedPlatforms(t *testing.T) {
	db := testDB(t)

	db.UpsertPlatformAuth("local", "chatgpt", true)
	db.UpsertPlatformAuth("local", "gemini", true)
	db.UpsertPlatformAuth("local", "claude", false)

	platforms, err := db.AuthenticatedPlatforms("local")
	if err != nil {
		t.Fatalf("AuthenticatedPlatforms failed: %v", err)
	}
	if !reflect.DeepEqual(platforms, []string{"chatgpt", "gemini"}) {
		t.Errorf("platforms = %v", platforms)
	}
}

// ============================================================================
// Settings Tests
// ============================================================================

func TestSettings(t *testing.T) {
	db := testDB(t)

	// Migration seeds retention
	val, err := db.GetSetting("retention_days")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "90" {
		t.Errorf("retention_days = %q, want 90", val)
	}

	if err := db.SetSetting("retention_days", "30"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	val, _ = db.GetSetting("retention_days")
	if val != "30" {
		t.Errorf("retention_days = %q after update, want 30", val)
	}

	val, _ = db.GetSetting("missing_key")
	if val != "" {
		t.Errorf("missing key = %q, want empty", val)
	}
}

func TestInstanceIDStable(t *testing.T) {
	db := testDB(t)

	first, err := db.InstanceID()
	if err != nil {
		t.Fatalf("InstanceID failed: %v", err)
	}
	if first == "" {
		t.Fatal("instance ID empty")
	}

	second, err := db.InstanceID()
	if err != nil {
		t.Fatalf("second InstanceID failed: %v", err)
	}
	if second != first {
		t.Errorf("instance ID changed: %q -> %q", first, second)
	}
}

func TestOnboardingFlag(t *testing.T) {
	db := testDB(t)

	done, err := db.IsOnboardingCompleted()
	if err != nil {
		t.Fatalf("IsOnboardingCompleted failed: %v", err)
	}
	if done {
		t.Error("onboarding completed before being set")
	}

	if err := db.SetOnboardingCompleted(true); err != nil {
		t.Fatalf("SetOnboardingCompleted failed: %v", err)
	}
	done, _ = db.IsOnboardingCompleted()
	if !done {
		t.Error("onboarding flag not persisted")
	}
}
