// Package postgres implements the shelfkeep.BookRepo contract on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfkeep/shelfkeep"
)

// foreign key violation
const pgErrForeignKey = "23503"

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) CreateBook(ctx context.Context, b shelfkeep.NewBook) (shelfkeep.Book, error) {
	query := `
		INSERT INTO books (id, title, author, api_cover_url)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING created_at
	`

	book := shelfkeep.Book{
		ID:          uuid.New(),
		Title:       b.Title,
		Author:      b.Author,
		APICoverURL: b.APICoverURL,
	}

	err := r.pool.QueryRow(ctx, query, book.ID, b.Title, b.Author, b.APICoverURL).Scan(&book.AddedAt)
	if err != nil {
		return shelfkeep.Book{}, fmt.Errorf("create book: %w", err)
	}

	return book, nil
}

func (r *Repo) GetBook(ctx context.Context, id uuid.UUID) (shelfkeep.Book, error) {
	query := `
		SELECT id, title, COALESCE(author, ''), COALESCE(api_cover_url, ''), created_at
		FROM books
		WHERE id = $1
	`

	var b shelfkeep.Book
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Title, &b.Author, &b.APICoverURL, &b.AddedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shelfkeep.Book{}, shelfkeep.ErrNotFound
		}
		return shelfkeep.Book{}, fmt.Errorf("get book: %w", err)
	}

	return b, nil
}

func (r *Repo) CreateCover(ctx context.Context, c shelfkeep.NewCover) (shelfkeep.Cover, error) {
	query := `
		INSERT INTO book_covers (id, book_id, image_url, storage_key)
		VALUES ($1, $2, $3, $4)
		RETURNING uploaded_at
	`

	cover := shelfkeep.Cover{
		ID:         uuid.New(),
		BookID:     c.BookID,
		URL:        c.URL,
		StorageKey: c.StorageKey,
	}

	err := r.pool.QueryRow(ctx, query, cover.ID, c.BookID, c.URL, c.StorageKey).Scan(&cover.UploadedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrForeignKey {
			// Referenced book does not exist at write time
			return shelfkeep.Cover{}, shelfkeep.ErrNotFound
		}
		return shelfkeep.Cover{}, fmt.Errorf("create cover: %w", err)
	}

	return cover, nil
}

func (r *Repo) ListBooks(ctx context.Context) ([]shelfkeep.BookWithCovers, error) {
	booksQuery := `
		SELECT id, title, COALESCE(author, ''), COALESCE(api_cover_url, ''), created_at
		FROM books
		ORDER BY created_at DESC, id
	`

	rows, err := r.pool.Query(ctx, booksQuery)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]shelfkeep.BookWithCovers, 0)
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var b shelfkeep.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.APICoverURL, &b.AddedAt); err != nil {
			return nil, fmt.Errorf("list books: scan: %w", err)
		}
		index[b.ID] = len(books)
		books = append(books, shelfkeep.BookWithCovers{Book: b, Covers: []shelfkeep.Cover{}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list books: rows: %w", err)
	}

	coversQuery := `
		SELECT id, book_id, image_url, storage_key, uploaded_at
		FROM book_covers
		ORDER BY uploaded_at DESC, id
	`

	coverRows, err := r.pool.Query(ctx, coversQuery)
	if err != nil {
		return nil, fmt.Errorf("list books: covers: %w", err)
	}
	defer coverRows.Close()

	for coverRows.Next() {
		var c shelfkeep.Cover
		if err := coverRows.Scan(&c.ID, &c.BookID, &c.URL, &c.StorageKey, &c.UploadedAt); err != nil {
			return nil, fmt.Errorf("list books: covers: scan: %w", err)
		}
		if i, ok := index[c.BookID]; ok {
			books[i].Covers = append(books[i].Covers, c)
		}
	}
	if err := coverRows.Err(); err != nil {
		return nil, fmt.Errorf("list books: covers: rows: %w", err)
	}

	return books, nil
}

func (r *Repo) DeleteCover(ctx context.Context, id uuid.UUID) (string, error) {
	query := `
		DELETE FROM book_covers
		WHERE id = $1
		RETURNING storage_key
	`

	var key string
	err := r.pool.QueryRow(ctx, query, id).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shelfkeep.ErrNotFound
		}
		return "", fmt.Errorf("delete cover: %w", err)
	}

	return key, nil
}

// DeleteBook removes the book row inside a transaction, collecting the
// storage keys of the covers the cascade removes. Concurrent deletes of the
// same book resolve to exactly one winner; the loser sees ErrNotFound.
func (r *Repo) DeleteBook(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete book: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	keysQuery := `
		SELECT storage_key
		FROM book_covers
		WHERE book_id = $1
	`

	rows, err := tx.Query(ctx, keysQuery, id)
	if err != nil {
		return nil, fmt.Errorf("delete book: collect keys: %w", err)
	}

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("delete book: collect keys: scan: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete book: collect keys: rows: %w", err)
	}

	// Cover rows go with the book via ON DELETE CASCADE
	result, err := tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, shelfkeep.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("delete book: commit: %w", err)
	}

	return keys, nil
}
