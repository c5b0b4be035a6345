package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// timeLayout is fixed width so created_at sorts lexically on both drivers.
const timeLayout = "2006-01-02T15:04:05.000Z"

// EnsureSchema creates the tables used by the demo backend and the entry
// cache when they do not exist yet.  driver is "mysql" or "sqlite"; the two
// differ only in how the record sequence column auto-increments.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "mysql" {
		seq = "seq BIGINT PRIMARY KEY AUTO_INCREMENT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			created_at VARCHAR(32) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			batch_id VARCHAR(64) PRIMARY KEY,
			created_by VARCHAR(64) NOT NULL,
			created_at VARCHAR(32) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS data_records (
			` + seq + `,
			event_id VARCHAR(64) NOT NULL UNIQUE,
			batch_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			data TEXT NOT NULL,
			tx_hash VARCHAR(128) NOT NULL,
			tx_status INTEGER NOT NULL,
			created_at VARCHAR(32) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS farm_entries (
			entry_id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			batch_id VARCHAR(64) NOT NULL,
			payload TEXT NOT NULL,
			created_at VARCHAR(32) NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
