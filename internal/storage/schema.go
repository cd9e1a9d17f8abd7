package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes. It is idempotent.
func InitSchema(db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_hash TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			address TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_hash ON tokens(key_hash)`,

		// One row per event; (seq, idx) orders the log.
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			tx_id TEXT NOT NULL,
			time_unix INTEGER NOT NULL,
			contract TEXT NOT NULL,
			name TEXT NOT NULL,
			fields TEXT NOT NULL,
			PRIMARY KEY (seq, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_contract_name ON events(contract, name)`,
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}
	return nil
}
