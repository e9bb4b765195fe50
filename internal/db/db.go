// Package db provides sqlite persistence for scan history, per-product
// auto-scan configuration, the platform auth cache, and app settings.
package db

import (
	"database/sql"
	"fmt"
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and runs
// migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; avoids SQLITE_BUSY between the scheduler and the
	// request handlers.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{conn}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}
