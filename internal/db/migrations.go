package db

import (
	"fmt"
)

// Migrate runs all database migrations
func (db *DB) Migrate() error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	// Run migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001},
		{2, migration002},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

const migration001 = `
-- Local scan history
CREATE TABLE scan_history (
    id INTEGER PRIMARY KEY,
    product_id TEXT NOT NULL,
    engine_session_id TEXT,
    status TEXT NOT NULL DEFAULT 'running',
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    total_prompts INTEGER DEFAULT 0,
    successful_prompts INTEGER DEFAULT 0,
    mention_rate REAL DEFAULT 0,
    citation_rate REAL DEFAULT 0,
    error_message TEXT
);

CREATE INDEX idx_scan_history_product_id ON scan_history(product_id);
CREATE INDEX idx_scan_history_started_at ON scan_history(started_at);
CREATE INDEX idx_scan_history_status ON scan_history(status);

-- Per-product auto-scan configuration
CREATE TABLE product_configs (
    product_id TEXT PRIMARY KEY,
    auto_run_enabled BOOLEAN DEFAULT 0,
    samples_per_prompt INTEGER DEFAULT 1,
    scans_per_day INTEGER DEFAULT 1,
    window_start INTEGER DEFAULT 9,
    window_end INTEGER DEFAULT 17,
    cron_expression TEXT,
    ready_platforms TEXT NOT NULL DEFAULT '[]',
    last_auto_scan_date TEXT,
    scans_today INTEGER DEFAULT 0,
    scheduled_times TEXT NOT NULL DEFAULT '[]',
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Cached platform login state per region
CREATE TABLE platform_auth (
    region TEXT NOT NULL,
    platform TEXT NOT NULL,
    authenticated BOOLEAN NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (region, platform)
);

-- App settings (key-value store)
CREATE TABLE settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Default retention days
INSERT INTO settings (key, value) VALUES ('retention_days', '90');
`

const migration002 = `
-- Onboarding state moved from the legacy JSON state file
INSERT OR IGNORE INTO settings (key, value) VALUES ('onboarding_completed', '0');
`
