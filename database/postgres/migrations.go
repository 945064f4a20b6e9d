package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the books and book_covers tables if they do not exist.
// The covers→books foreign key cascades on delete so a book deletion can
// never leave cover rows behind even outside the transactional path.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sql := `
		CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT,
			api_cover_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS book_covers (
			id UUID PRIMARY KEY,
			book_id UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			image_url TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_book_covers_book_id
		ON book_covers (book_id);

		CREATE INDEX IF NOT EXISTS idx_book_covers_uploaded_at
		ON book_covers (uploaded_at DESC);

		CREATE INDEX IF NOT EXISTS idx_books_created_at
		ON books (created_at DESC);
	`

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create catalog tables: %w", err)
	}
	return nil
}

// DropTables removes the catalog tables. Intended for tests.
func DropTables(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS book_covers; DROP TABLE IF EXISTS books;`); err != nil {
		return fmt.Errorf("drop catalog tables: %w", err)
	}
	return nil
}
