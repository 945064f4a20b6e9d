// Package sqlite implements the shelfkeep.BookRepo contract using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelfkeep/shelfkeep"
)

// timeFormat is RFC 3339 with fixed-width nanoseconds so the stored TEXT
// timestamps compare lexically in chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateBook(ctx context.Context, b shelfkeep.NewBook) (shelfkeep.Book, error) {
	now := time.Now().UTC()

	book := shelfkeep.Book{
		ID:          uuid.New(),
		Title:       b.Title,
		Author:      b.Author,
		APICoverURL: b.APICoverURL,
		AddedAt:     now,
	}

	query := `
		INSERT INTO books (id, title, author, api_cover_url, created_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		book.ID.String(), b.Title, b.Author, b.APICoverURL, now.Format(timeFormat),
	)
	if err != nil {
		return shelfkeep.Book{}, fmt.Errorf("create book: %w", err)
	}

	return book, nil
}

func (r *Repo) GetBook(ctx context.Context, id uuid.UUID) (shelfkeep.Book, error) {
	query := `
		SELECT id, title, COALESCE(author, ''), COALESCE(api_cover_url, ''), created_at
		FROM books
		WHERE id = ?
	`

	b, err := scanBook(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shelfkeep.Book{}, shelfkeep.ErrNotFound
		}
		return shelfkeep.Book{}, fmt.Errorf("get book: %w", err)
	}

	return b, nil
}

// CreateCover checks book existence and inserts the cover row in one
// transaction, so a cover can never reference a book that was already gone
// at write time.
func (r *Repo) CreateCover(ctx context.Context, c shelfkeep.NewCover) (shelfkeep.Cover, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return shelfkeep.Cover{}, fmt.Errorf("create cover: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM books WHERE id = ?`, c.BookID.String()).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shelfkeep.Cover{}, shelfkeep.ErrNotFound
		}
		return shelfkeep.Cover{}, fmt.Errorf("create cover: check book: %w", err)
	}

	now := time.Now().UTC()
	cover := shelfkeep.Cover{
		ID:         uuid.New(),
		BookID:     c.BookID,
		URL:        c.URL,
		StorageKey: c.StorageKey,
		UploadedAt: now,
	}

	query := `
		INSERT INTO book_covers (id, book_id, image_url, storage_key, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		cover.ID.String(), c.BookID.String(), c.URL, c.StorageKey, now.Format(timeFormat),
	)
	if err != nil {
		return shelfkeep.Cover{}, fmt.Errorf("create cover: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return shelfkeep.Cover{}, fmt.Errorf("create cover: commit: %w", err)
	}

	return cover, nil
}

func (r *Repo) ListBooks(ctx context.Context) ([]shelfkeep.BookWithCovers, error) {
	booksQuery := `
		SELECT id, title, COALESCE(author, ''), COALESCE(api_cover_url, ''), created_at
		FROM books
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, booksQuery)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	books := make([]shelfkeep.BookWithCovers, 0)
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
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

	coverRows, err := r.db.QueryContext(ctx, coversQuery)
	if err != nil {
		return nil, fmt.Errorf("list books: covers: %w", err)
	}
	defer func() { _ = coverRows.Close() }()

	for coverRows.Next() {
		var c shelfkeep.Cover
		var idStr, bookIDStr, uploadedAt string

		if err := coverRows.Scan(&idStr, &bookIDStr, &c.URL, &c.StorageKey, &uploadedAt); err != nil {
			return nil, fmt.Errorf("list books: covers: scan: %w", err)
		}

		c.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("list books: covers: parse id: %w", err)
		}
		c.BookID, err = uuid.Parse(bookIDStr)
		if err != nil {
			return nil, fmt.Errorf("list books: covers: parse book id: %w", err)
		}
		c.UploadedAt, err = time.Parse(timeFormat, uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("list books: covers: parse uploaded_at: %w", err)
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
		WHERE id = ?
		RETURNING storage_key
	`

	var key string
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", shelfkeep.ErrNotFound
		}
		return "", fmt.Errorf("delete cover: %w", err)
	}

	return key, nil
}

// DeleteBook removes the book and its cover rows in one transaction,
// returning the removed covers' storage keys. The cascade is explicit so it
// holds even when the connection's foreign_keys pragma is off.
func (r *Repo) DeleteBook(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete book: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT storage_key FROM book_covers WHERE book_id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("delete book: collect keys: %w", err)
	}

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("delete book: collect keys: scan: %w", err)
		}
		keys = append(keys, key)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete book: collect keys: rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_covers WHERE book_id = ?`, id.String()); err != nil {
		return nil, fmt.Errorf("delete book: covers: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("delete book: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, shelfkeep.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete book: commit: %w", err)
	}

	return keys, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (shelfkeep.Book, error) {
	var b shelfkeep.Book
	var idStr, createdAt string

	if err := row.Scan(&idStr, &b.Title, &b.Author, &b.APICoverURL, &createdAt); err != nil {
		return shelfkeep.Book{}, err
	}

	var err error
	b.ID, err = uuid.Parse(idStr)
	if err != nil {
		return shelfkeep.Book{}, fmt.Errorf("parse id: %w", err)
	}

	b.AddedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return shelfkeep.Book{}, fmt.Errorf("parse created_at: %w", err)
	}

	return b, nil
}
