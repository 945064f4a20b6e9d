// Package jsonfile implements the shelfkeep.BookRepo contract on a single
// structured JSON file, the format of the original single-user deployment.
//
// Every write rewrites the whole file atomically (temp file, fsync, rename)
// and writes are serialized behind one in-process mutex, so concurrent
// mutations cannot lose each other's updates and concurrent deletes of the
// same record resolve to exactly one winner.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfkeep/shelfkeep"
)

type fileData struct {
	Books  []bookRecord  `json:"books"`
	Covers []coverRecord `json:"covers"`
}

type bookRecord struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	APICoverURL string    `json:"apiCoverUrl"`
	AddedDate   time.Time `json:"addedDate"`
}

type coverRecord struct {
	ID         uuid.UUID `json:"id"`
	BookID     uuid.UUID `json:"bookId"`
	URL        string    `json:"url"`
	StorageKey string    `json:"storageKey"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Repo struct {
	path string
	mu   sync.Mutex
}

// NewRepo opens the data file at path, creating it (and its parent
// directory) with an empty catalog if it does not exist yet.
func NewRepo(path string) (*Repo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	r := &Repo{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.save(fileData{Books: []bookRecord{}, Covers: []coverRecord{}}); err != nil {
			return nil, fmt.Errorf("initialize data file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat data file: %w", err)
	}

	// Fail now, not on first request, if the file is unreadable or corrupt
	if _, err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Repo) CreateBook(ctx context.Context, b shelfkeep.NewBook) (shelfkeep.Book, error) {
	if err := ctx.Err(); err != nil {
		return shelfkeep.Book{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return shelfkeep.Book{}, fmt.Errorf("create book: %w", err)
	}

	rec := bookRecord{
		ID:          uuid.New(),
		Title:       b.Title,
		Author:      b.Author,
		APICoverURL: b.APICoverURL,
		AddedDate:   time.Now().UTC(),
	}

	data.Books = append(data.Books, rec)
	if err := r.save(data); err != nil {
		return shelfkeep.Book{}, fmt.Errorf("create book: %w", err)
	}

	return rec.book(), nil
}

func (r *Repo) GetBook(ctx context.Context, id uuid.UUID) (shelfkeep.Book, error) {
	if err := ctx.Err(); err != nil {
		return shelfkeep.Book{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return shelfkeep.Book{}, fmt.Errorf("get book: %w", err)
	}

	for _, rec := range data.Books {
		if rec.ID == id {
			return rec.book(), nil
		}
	}

	return shelfkeep.Book{}, shelfkeep.ErrNotFound
}

// CreateCover verifies the book exists under the same lock as the insert,
// so a cover record can never reference a book missing at write time.
func (r *Repo) CreateCover(ctx context.Context, c shelfkeep.NewCover) (shelfkeep.Cover, error) {
	if err := ctx.Err(); err != nil {
		return shelfkeep.Cover{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return shelfkeep.Cover{}, fmt.Errorf("create cover: %w", err)
	}

	found := false
	for _, rec := range data.Books {
		if rec.ID == c.BookID {
			found = true
			break
		}
	}
	if !found {
		return shelfkeep.Cover{}, shelfkeep.ErrNotFound
	}

	rec := coverRecord{
		ID:         uuid.New(),
		BookID:     c.BookID,
		URL:        c.URL,
		StorageKey: c.StorageKey,
		UploadedAt: time.Now().UTC(),
	}

	data.Covers = append(data.Covers, rec)
	if err := r.save(data); err != nil {
		return shelfkeep.Cover{}, fmt.Errorf("create cover: %w", err)
	}

	return rec.cover(), nil
}

func (r *Repo) ListBooks(ctx context.Context) ([]shelfkeep.BookWithCovers, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	coversByBook := make(map[uuid.UUID][]shelfkeep.Cover)
	for _, rec := range data.Covers {
		coversByBook[rec.BookID] = append(coversByBook[rec.BookID], rec.cover())
	}
	for _, covers := range coversByBook {
		sort.Slice(covers, func(i, j int) bool {
			if !covers[i].UploadedAt.Equal(covers[j].UploadedAt) {
				return covers[i].UploadedAt.After(covers[j].UploadedAt)
			}
			return covers[i].ID.String() < covers[j].ID.String()
		})
	}

	books := make([]shelfkeep.BookWithCovers, 0, len(data.Books))
	for _, rec := range data.Books {
		covers := coversByBook[rec.ID]
		if covers == nil {
			covers = []shelfkeep.Cover{}
		}
		books = append(books, shelfkeep.BookWithCovers{Book: rec.book(), Covers: covers})
	}

	sort.Slice(books, func(i, j int) bool {
		if !books[i].AddedAt.Equal(books[j].AddedAt) {
			return books[i].AddedAt.After(books[j].AddedAt)
		}
		return books[i].ID.String() < books[j].ID.String()
	})

	return books, nil
}

func (r *Repo) DeleteCover(ctx context.Context, id uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return "", fmt.Errorf("delete cover: %w", err)
	}

	key := ""
	remaining := data.Covers[:0]
	for _, rec := range data.Covers {
		if rec.ID == id {
			key = rec.StorageKey
			continue
		}
		remaining = append(remaining, rec)
	}

	if key == "" {
		return "", shelfkeep.ErrNotFound
	}

	data.Covers = remaining
	if err := r.save(data); err != nil {
		return "", fmt.Errorf("delete cover: %w", err)
	}

	return key, nil
}

func (r *Repo) DeleteBook(ctx context.Context, id uuid.UUID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}

	found := false
	remainingBooks := data.Books[:0]
	for _, rec := range data.Books {
		if rec.ID == id {
			found = true
			continue
		}
		remainingBooks = append(remainingBooks, rec)
	}

	if !found {
		return nil, shelfkeep.ErrNotFound
	}

	keys := make([]string, 0)
	remainingCovers := data.Covers[:0]
	for _, rec := range data.Covers {
		if rec.BookID == id {
			keys = append(keys, rec.StorageKey)
			continue
		}
		remainingCovers = append(remainingCovers, rec)
	}

	data.Books = remainingBooks
	data.Covers = remainingCovers
	if err := r.save(data); err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}

	return keys, nil
}

func (r *Repo) load() (fileData, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fileData{}, fmt.Errorf("read data file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fileData{}, fmt.Errorf("parse data file: %w", err)
	}

	if data.Books == nil {
		data.Books = []bookRecord{}
	}
	if data.Covers == nil {
		data.Covers = []coverRecord{}
	}

	return data, nil
}

// save rewrites the whole file through a temp file in the same directory,
// fsyncing before the rename so the catalog is durable when save returns.
func (r *Repo) save(data fileData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".books-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

func (b bookRecord) book() shelfkeep.Book {
	return shelfkeep.Book{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		APICoverURL: b.APICoverURL,
		AddedAt:     b.AddedDate,
	}
}

func (c coverRecord) cover() shelfkeep.Cover {
	return shelfkeep.Cover{
		ID:         c.ID,
		BookID:     c.BookID,
		URL:        c.URL,
		StorageKey: c.StorageKey,
		UploadedAt: c.UploadedAt,
	}
}
