package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the schema for the marketplace backend in the dialect of db.
func Run(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == "pgx" {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            pharmacy_id TEXT,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS pharmacies (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            owner_id TEXT,
            created_at TEXT NOT NULL,
            FOREIGN KEY(owner_id) REFERENCES users(id)
        );`,
	`CREATE TABLE IF NOT EXISTS catalog_entries (
            id TEXT PRIMARY KEY,
            canonical_name TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            reference_price TEXT NOT NULL DEFAULT '0',
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS stock_items (
            id TEXT PRIMARY KEY,
            pharmacy_id TEXT NOT NULL,
            name TEXT NOT NULL,
            unit_price TEXT NOT NULL,
            quantity_on_hand INTEGER NOT NULL,
            unit_type TEXT NOT NULL DEFAULT '',
            requires_prescription INTEGER NOT NULL DEFAULT 0,
            linked_catalog_entry_id TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            FOREIGN KEY(pharmacy_id) REFERENCES pharmacies(id),
            FOREIGN KEY(linked_catalog_entry_id) REFERENCES catalog_entries(id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_stock_items_pharmacy ON stock_items(pharmacy_id);`,
	`CREATE TABLE IF NOT EXISTS prescription_requests (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            image_ref TEXT NOT NULL,
            target_pharmacy_id TEXT NOT NULL,
            status TEXT NOT NULL,
            ai_analysis TEXT,
            reviewed_items TEXT,
            rejection_reason TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            expires_at TEXT,
            FOREIGN KEY(target_pharmacy_id) REFERENCES pharmacies(id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_prescription_requests_pharmacy ON prescription_requests(target_pharmacy_id, status);`,
	`CREATE TABLE IF NOT EXISTS quotes (
            id TEXT PRIMARY KEY,
            request_id TEXT NOT NULL UNIQUE,
            pharmacy_id TEXT NOT NULL,
            pharmacy_name TEXT NOT NULL,
            total_value TEXT NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            FOREIGN KEY(request_id) REFERENCES prescription_requests(id),
            FOREIGN KEY(pharmacy_id) REFERENCES pharmacies(id)
        );`,
	`CREATE TABLE IF NOT EXISTS quote_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            quote_id TEXT NOT NULL,
            line_no INTEGER NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            unit_price TEXT NOT NULL,
            unit_type TEXT NOT NULL DEFAULT '',
            linked_stock_item_id TEXT,
            stock_snapshot INTEGER,
            is_matched INTEGER NOT NULL DEFAULT 0,
            FOREIGN KEY(quote_id) REFERENCES quotes(id)
        );`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			pharmacy_id TEXT,
			created_at TEXT NOT NULL
		);`,
	`CREATE TABLE IF NOT EXISTS pharmacies (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            location TEXT NOT NULL DEFAULT '',
            owner_id TEXT REFERENCES users(id),
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS catalog_entries (
            id TEXT PRIMARY KEY,
            canonical_name TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            reference_price NUMERIC(14,2) NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS stock_items (
            id TEXT PRIMARY KEY,
            pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
            name TEXT NOT NULL,
            unit_price NUMERIC(14,2) NOT NULL,
            quantity_on_hand BIGINT NOT NULL,
            unit_type TEXT NOT NULL DEFAULT '',
            requires_prescription BOOLEAN NOT NULL DEFAULT FALSE,
            linked_catalog_entry_id TEXT REFERENCES catalog_entries(id),
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_stock_items_pharmacy ON stock_items(pharmacy_id);`,
	`CREATE TABLE IF NOT EXISTS prescription_requests (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            image_ref TEXT NOT NULL,
            target_pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
            status TEXT NOT NULL,
            ai_analysis TEXT,
            reviewed_items TEXT,
            rejection_reason TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            expires_at TEXT
        );`,
	`CREATE INDEX IF NOT EXISTS idx_prescription_requests_pharmacy ON prescription_requests(target_pharmacy_id, status);`,
	`CREATE TABLE IF NOT EXISTS quotes (
            id TEXT PRIMARY KEY,
            request_id TEXT NOT NULL UNIQUE REFERENCES prescription_requests(id),
            pharmacy_id TEXT NOT NULL REFERENCES pharmacies(id),
            pharmacy_name TEXT NOT NULL,
            total_value NUMERIC(14,2) NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS quote_items (
			id SERIAL PRIMARY KEY,
			quote_id TEXT NOT NULL REFERENCES quotes(id),
			line_no INTEGER NOT NULL,
			name TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			unit_price NUMERIC(14,2) NOT NULL,
			unit_type TEXT NOT NULL DEFAULT '',
			linked_stock_item_id TEXT,
			stock_snapshot BIGINT,
			is_matched BOOLEAN NOT NULL DEFAULT FALSE
		);`,
}
