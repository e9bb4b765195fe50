package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScanRecord queries

// CreateScanRecord inserts a running history row for a new scan.
func (db *DB) CreateScanRecord(productID string, engineSessionID *string) (*ScanRecord, error) {
	result, err := db.Exec(`
		INSERT INTO scan_history (product_id, engine_session_id, status, started_at)
		VALUES (?, ?, ?, ?)`,
		productID, engineSessionID, ScanStatusRunning, time.Now(),
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetScanRecord(id)
}

// GetScanRecord retrieves a scan history row by ID.
func (db *DB) GetScanRecord(id int64) (*ScanRecord, error) {
	row := db.QueryRow(`
		SELECT id, product_id, engine_session_id, status, started_at, completed_at,
			total_prompts, successful_prompts, mention_rate, citation_rate, error_message
		FROM scan_history WHERE id = ?`, id)
	return scanScanRecord(row)
}

// ListScanRecords returns scan history with pagination, newest first.
func (db *DB) ListScanRecords(limit, offset int) ([]*ScanRecord, error) {
	rows, err := db.Query(`
		SELECT id, product_id, engine_session_id, status, started_at, completed_at,
			total_prompts, successful_prompts, mention_rate, citation_rate, error_message
		FROM scan_history ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ScanRecord
	for rows.Next() {
		r, err := scanScanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetActiveScanRecord returns the most recent still-running history
// row, if any.
func (db *DB) GetActiveScanRecord() (*ScanRecord, error) {
	row := db.QueryRow(`
		SELECT id, product_id, engine_session_id, status, started_at, completed_at,
			total_prompts, successful_prompts, mention_rate, citation_rate, error_message
		FROM scan_history WHERE status = ? ORDER BY started_at DESC, id DESC LIMIT 1`,
		ScanStatusRunning)
	return scanScanRecord(row)
}

// CompleteScanRecord finalizes a history row with the scan summary.
func (db *DB) CompleteScanRecord(id int64, status ScanStatus, totalPrompts, successfulPrompts int, mentionRate, citationRate float64, errorMsg *string) error {
	_, err := db.Exec(`
		UPDATE scan_history SET
			status = ?, completed_at = ?, total_prompts = ?, successful_prompts = ?,
			mention_rate = ?, citation_rate = ?, error_message = ?
		WHERE id = ?`,
		status, time.Now(), totalPrompts, successfulPrompts, mentionRate, citationRate, errorMsg, id,
	)
	return err
}

// AbandonRunningScans marks leftover running rows (e.g. after a crash)
// as failed, except the given ID.
func (db *DB) AbandonRunningScans(exceptID int64) error {
	msg := "Interrupted"
	_, err := db.Exec(`
		UPDATE scan_history SET status = ?, completed_at = ?, error_message = ?
		WHERE status = ? AND id != ?`,
		ScanStatusFailed, time.Now(), msg, ScanStatusRunning, exceptID,
	)
	return err
}

func scanScanRecord(row *sql.Row) (*ScanRecord, error) {
	var r ScanRecord
	var engineID, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.ProductID, &engineID, &r.Status, &r.StartedAt, &completedAt,
		&r.TotalPrompts, &r.SuccessfulPrompts, &r.MentionRate, &r.CitationRate, &errorMsg)
	if err != nil {
		return nil, err
	}

	if engineID.Valid {
		r.EngineSessionID = &engineID.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if errorMsg.Valid {
		r.ErrorMessage = &errorMsg.String
	}
	return &r, nil
}

func scanScanRecordRow(rows *sql.Rows) (*ScanRecord, error) {
	var r ScanRecord
	var engineID, errorMsg sql.NullString
	var completedAt sql.NullTime

	err := rows.Scan(&r.ID, &r.ProductID, &engineID, &r.Status, &r.StartedAt, &completedAt,
		&r.TotalPrompts, &r.SuccessfulPrompts, &r.MentionRate, &r.CitationRate, &errorMsg)
	if err != nil {
		return nil, err
	}

	if engineID.Valid {
		r.EngineSessionID = &engineID.String
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if errorMsg.Valid {
		r.ErrorMessage = &errorMsg.String
	}
	return &r, nil
}

// ProductConfig queries

// GetProductConfig returns the auto-scan config for a product, with
// defaults when no row exists yet.
func (db *DB) GetProductConfig(productID string) (*ProductConfig, error) {
	row := db.QueryRow(`
		SELECT product_id, auto_run_enabled, samples_per_prompt, scans_per_day,
			window_start, window_end, cron_expression, ready_platforms,
			last_auto_scan_date, scans_today, scheduled_times, updated_at
		FROM product_configs WHERE product_id = ?`, productID)

	cfg, err := scanProductConfig(row)
	if err == sql.ErrNoRows {
		return &ProductConfig{
			ProductID:        productID,
			SamplesPerPrompt: 1,
			ScansPerDay:      1,
			WindowStart:      9,
			WindowEnd:        17,
			UpdatedAt:        time.Now(),
		}, nil
	}
	return cfg, err
}

// ListProductConfigs returns all stored configs ordered by product ID
// so schedule distribution is stable across runs.
func (db *DB) ListProductConfigs() ([]*ProductConfig, error) {
	rows, err := db.Query(`
		SELECT product_id, auto_run_enabled, samples_per_prompt, scans_per_day,
			window_start, window_end, cron_expression, ready_platforms,
			last_auto_scan_date, scans_today, scheduled_times, updated_at
		FROM product_configs ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*ProductConfig
	for rows.Next() {
		var cfg ProductConfig
		var cron, lastDate sql.NullString
		var platforms, times string
		err := rows.Scan(&cfg.ProductID, &cfg.AutoRunEnabled, &cfg.SamplesPerPrompt,
			&cfg.ScansPerDay, &cfg.WindowStart, &cfg.WindowEnd, &cron, &platforms,
			&lastDate, &cfg.ScansToday, &times, &cfg.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if cron.Valid {
			cfg.CronExpression = &cron.String
		}
		if lastDate.Valid {
			cfg.LastAutoScanDate = &lastDate.String
		}
		if err := json.Unmarshal([]byte(platforms), &cfg.ReadyPlatforms); err != nil {
			return nil, fmt.Errorf("bad ready_platforms for %s: %w", cfg.ProductID, err)
		}
		if err := json.Unmarshal([]byte(times), &cfg.ScheduledTimes); err != nil {
			return nil, fmt.Errorf("bad scheduled_times for %s: %w", cfg.ProductID, err)
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// UpsertProductConfig stores the auto-scan config for a product.
func (db *DB) UpsertProductConfig(cfg *ProductConfig) error {
	platforms, err := json.Marshal(cfg.ReadyPlatforms)
	if err != nil {
		return err
	}
	if cfg.ReadyPlatforms == nil {
		platforms = []byte("[]")
	}
	times, err := json.Marshal(cfg.ScheduledTimes)
	if err != nil {
		return err
	}
	if cfg.ScheduledTimes == nil {
		times = []byte("[]")
	}

	_, err = db.Exec(`
		INSERT INTO product_configs (product_id, auto_run_enabled, samples_per_prompt,
			scans_per_day, window_start, window_end, cron_expression, ready_platforms,
			last_auto_scan_date, scans_today, scheduled_times, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			auto_run_enabled = excluded.auto_run_enabled,
			samples_per_prompt = excluded.samples_per_prompt,
			scans_per_day = excluded.scans_per_day,
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			cron_expression = excluded.cron_expression,
			ready_platforms = excluded.ready_platforms,
			last_auto_scan_date = excluded.last_auto_scan_date,
			scans_today = excluded.scans_today,
			scheduled_times = excluded.scheduled_times,
			updated_at = excluded.updated_at`,
		cfg.ProductID, cfg.AutoRunEnabled, cfg.SamplesPerPrompt, cfg.ScansPerDay,
		cfg.WindowStart, cfg.WindowEnd, cfg.CronExpression, string(platforms),
		cfg.LastAutoScanDate, cfg.ScansToday, string(times), time.Now(),
	)
	return err
}

func scanProductConfig(row *sql.Row) (*ProductConfig, error) {
	var cfg ProductConfig
	var cron, lastDate sql.NullString
	var platforms, times string

	err := row.Scan(&cfg.ProductID, &cfg.AutoRunEnabled, &cfg.SamplesPerPrompt,
		&cfg.ScansPerDay, &cfg.WindowStart, &cfg.WindowEnd, &cron, &platforms,
		&lastDate, &cfg.ScansToday, &times, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if cron.Valid {
		cfg.CronExpression = &cron.String
	}
	if lastDate.Valid {
		cfg.LastAutoScanDate = &lastDate.String
	}
	if err := json.Unmarshal([]byte(platforms), &cfg.ReadyPlatforms); err != nil {
		return nil, fmt.Errorf("bad ready_platforms for %s: %w", cfg.ProductID, err)
	}
	if err := json.Unmarshal([]byte(times), &cfg.ScheduledTimes); err != nil {
		return nil, fmt.Errorf("bad scheduled_times for %s: %w", cfg.ProductID, err)
	}
	return &cfg, nil
}

// PlatformAuth queries

// UpsertPlatformAuth records the login state of a platform in a region.
func (db *DB) UpsertPlatformAuth(region, platform string, authenticated bool) error {
	_, err := db.Exec(`
		INSERT INTO platform_auth (region, platform, authenticated, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(region, platform) DO UPDATE SET
			authenticated = excluded.authenticated,
			updated_at = excluded.updated_at`,
		region, platform, authenticated, time.Now(),
	)
	return err
}

// ListPlatformAuth returns the auth cache for a region.
func (db *DB) ListPlatformAuth(region string) ([]*PlatformAuth, error) {
	rows, err := db.Query(`
		SELECT region, platform, authenticated, updated_at
		FROM platform_auth WHERE region = ? ORDER BY platform`, region)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*PlatformAuth
	for rows.Next() {
		var a PlatformAuth
		if err := rows.Scan(&a.Region, &a.Platform, &a.Authenticated, &a.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &a)
	}
	return entries, rows.Err()
}

// AuthenticatedPlatforms returns the platforms logged in for a region.
func (db *DB) AuthenticatedPlatforms(region string) ([]string, error) {
	rows, err := db.Query(`
		SELECT platform FROM platform_auth
		WHERE region = ? AND authenticated = 1 ORDER BY platform`, region)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// IsPlatformAuthenticated reports the cached login state for a
// region/platform pair.
func (db *DB) IsPlatformAuthenticated(region, platform string) (bool, error) {
	var authenticated bool
	err := db.QueryRow(`
		SELECT authenticated FROM platform_auth
		WHERE region = ? AND platform = ?`, region, platform).Scan(&authenticated)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return authenticated, err
}

// Settings queries

// GetSetting retrieves a setting value; empty string when unset.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting stores a setting value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// InstanceID returns this installation's stable identifier, generating
// one on first call.
func (db *DB) InstanceID() (string, error) {
	id, err := db.GetSetting("instance_id")
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := db.SetSetting("instance_id", id); err != nil {
		return "", err
	}
	return id, nil
}

// IsOnboardingCompleted reports whether first-run onboarding finished.
func (db *DB) IsOnboardingCompleted() (bool, error) {
	value, err := db.GetSetting("onboarding_completed")
	return value == "1", err
}

// SetOnboardingCompleted stores the onboarding flag.
func (db *DB) SetOnboardingCompleted(completed bool) error {
	value := "0"
	if completed {
		value = "1"
	}
	return db.SetSetting("onboarding_completed", value)
}

// CleanupOldData removes scan history older than the retention period.
func (db *DB) CleanupOldData(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := db.Exec("DELETE FROM scan_history WHERE started_at < ?", cutoff)
	return err
}
