package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the books and book_covers tables if they do not exist.
// Timestamps are stored as fixed-width RFC 3339 TEXT. The foreign key is declared
// for documentation, but the repo enforces existence checks and the cover
// cascade itself inside transactions; SQLite only honors the constraint
// when foreign_keys is enabled on the connection.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT NOT NULL PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT,
			api_cover_url TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS book_covers (
			id TEXT NOT NULL PRIMARY KEY,
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			image_url TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			uploaded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_book_covers_book_id ON book_covers (book_id)`,
		`CREATE INDEX IF NOT EXISTS idx_books_created_at ON books (created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

// DropTables removes the catalog tables. Intended for tests.
func DropTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS book_covers`,
		`DROP TABLE IF EXISTS books`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
	}
	return nil
}
