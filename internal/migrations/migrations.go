package migrations

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Run creates the database schema required for the POS engine.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS medicines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            description TEXT,
            quantity_on_hand INTEGER NOT NULL CHECK (quantity_on_hand >= 0),
            unit_price TEXT NOT NULL,
            expiry_date TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS invoices (
            id TEXT PRIMARY KEY,
            total_amount TEXT NOT NULL,
            customer_name TEXT,
            customer_phone TEXT,
            created_at TEXT NOT NULL
        );`,
		// No foreign key to medicines: an invoice outlives the catalog row it sold.
		`CREATE TABLE IF NOT EXISTS invoice_lines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            invoice_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            medicine_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            unit_price TEXT NOT NULL,
            subtotal TEXT NOT NULL,
            FOREIGN KEY(invoice_id) REFERENCES invoices(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice ON invoice_lines(invoice_id);`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "migration failed")
		}
	}
	return nil
}
