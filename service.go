package shelfkeep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Photo is an uploaded cover image: raw bytes plus their declared content
// type. Size and type limits are enforced at the transport boundary before a
// Photo reaches the service.
type Photo struct {
	Content     io.Reader
	ContentType string
}

// LibraryService orchestrates the metadata store and the asset store.
//
// It owns the ordering and compensation rules for every multi-step write:
// assets are stored before the cover record pointing at them is created, and
// cover records are removed before their assets are deleted. The two stores
// cannot be updated in one transaction, so a failure between steps is bounded
// to an orphaned asset (logged as a consistency warning and reclaimable out
// of band), never to a cover record referencing a missing asset.
type LibraryService struct {
	repo           BookRepo
	assets         AssetStore
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for LibraryService.
type ServiceConfig struct {
	CleanupTimeout time.Duration // Timeout for compensation and best-effort asset deletes (default: 30s)
}

func NewLibraryService(repo BookRepo, assets AssetStore, cfg ServiceConfig) (*LibraryService, error) {
	if repo == nil {
		return nil, fmt.Errorf("new library service: book repo is required")
	}
	if assets == nil {
		return nil, fmt.Errorf("new library service: asset store is required")
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}

	return &LibraryService{
		repo:           repo,
		assets:         assets,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// ListBooks returns the catalog with covers embedded, books and covers both
// most-recent-first. Every call recomputes from the metadata store; nothing
// is cached across requests.
func (s *LibraryService) ListBooks(ctx context.Context) ([]BookWithCovers, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return books, nil
}

// CreateBookWithPhoto creates a book together with its first cover photo.
// The photo is mandatory on this path.
//
// Step order: book record, then asset, then cover record. If the asset write
// fails the just-created book record is deleted again so the call leaves no
// trace. If the cover record fails after a successful asset write, the book
// record is likewise removed but the stored asset stays behind as an orphan;
// deleting it would chain a second compensating delete onto a failure path,
// so it is only logged for out-of-band reconciliation.
func (s *LibraryService) CreateBookWithPhoto(ctx context.Context, nb NewBook, photo Photo) (BookWithCovers, error) {
	if err := ctx.Err(); err != nil {
		return BookWithCovers{}, fmt.Errorf("create book with photo: %w", err)
	}

	if strings.TrimSpace(nb.Title) == "" {
		return BookWithCovers{}, fmt.Errorf("create book with photo: %w: title is required", ErrInvalidInput)
	}

	if photo.Content == nil {
		return BookWithCovers{}, fmt.Errorf("create book with photo: %w: photo is required", ErrInvalidInput)
	}

	book, err := s.repo.CreateBook(ctx, nb)
	if err != nil {
		return BookWithCovers{}, fmt.Errorf("create book with photo: %w", err)
	}

	asset, storeErr := s.assets.Store(ctx, book.ID, photo.ContentType, photo.Content)
	if storeErr != nil {
		s.compensateBook(book.ID, "asset write failed")
		return BookWithCovers{}, fmt.Errorf("create book %s: %w: %w", book.ID, ErrAssetWrite, storeErr)
	}

	cover, coverErr := s.repo.CreateCover(ctx, NewCover{
		BookID:     book.ID,
		URL:        asset.URL,
		StorageKey: asset.Key,
	})
	if coverErr != nil {
		// The asset is now unreferenced. Accepted as a bounded leak; see
		// package docs.
		slog.Warn("orphaned asset: cover record creation failed after asset write",
			"book_id", book.ID, "storage_key", asset.Key, "err", coverErr)
		s.compensateBook(book.ID, "cover record creation failed")
		return BookWithCovers{}, fmt.Errorf("create book %s: cover record: %w", book.ID, coverErr)
	}

	return BookWithCovers{Book: book, Covers: []Cover{cover}}, nil
}

// CreateBookFromSearch creates a book from an external catalog result. No
// photo is required; if one is supplied and its attach fails, the book stands
// and the failure is only logged; a book without covers is a valid state on
// this path.
func (s *LibraryService) CreateBookFromSearch(ctx context.Context, nb NewBook, photo *Photo) (BookWithCovers, error) {
	if err := ctx.Err(); err != nil {
		return BookWithCovers{}, fmt.Errorf("create book from search: %w", err)
	}

	if strings.TrimSpace(nb.Title) == "" {
		return BookWithCovers{}, fmt.Errorf("create book from search: %w: title is required", ErrInvalidInput)
	}

	book, err := s.repo.CreateBook(ctx, nb)
	if err != nil {
		return BookWithCovers{}, fmt.Errorf("create book from search: %w", err)
	}

	result := BookWithCovers{Book: book, Covers: []Cover{}}

	if photo == nil || photo.Content == nil {
		return result, nil
	}

	asset, storeErr := s.assets.Store(ctx, book.ID, photo.ContentType, photo.Content)
	if storeErr != nil {
		slog.Warn("photo attach failed; book kept without cover",
			"book_id", book.ID, "err", storeErr)
		return result, nil
	}

	cover, coverErr := s.repo.CreateCover(ctx, NewCover{
		BookID:     book.ID,
		URL:        asset.URL,
		StorageKey: asset.Key,
	})
	if coverErr != nil {
		slog.Warn("orphaned asset: cover record creation failed after asset write",
			"book_id", book.ID, "storage_key", asset.Key, "err", coverErr)
		return result, nil
	}

	result.Covers = []Cover{cover}
	return result, nil
}

// AttachCover stores an additional cover photo for an existing book. The
// book's existence is checked before the asset write so a bad book ID never
// produces an orphaned asset.
func (s *LibraryService) AttachCover(ctx context.Context, bookID uuid.UUID, photo Photo) (Cover, error) {
	if err := ctx.Err(); err != nil {
		return Cover{}, fmt.Errorf("attach cover: %w", err)
	}

	if photo.Content == nil {
		return Cover{}, fmt.Errorf("attach cover: %w: photo is required", ErrInvalidInput)
	}

	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return Cover{}, fmt.Errorf("attach cover %s: %w", bookID, err)
	}

	asset, storeErr := s.assets.Store(ctx, bookID, photo.ContentType, photo.Content)
	if storeErr != nil {
		return Cover{}, fmt.Errorf("attach cover %s: %w: %w", bookID, ErrAssetWrite, storeErr)
	}

	cover, coverErr := s.repo.CreateCover(ctx, NewCover{
		BookID:     bookID,
		URL:        asset.URL,
		StorageKey: asset.Key,
	})
	if coverErr != nil {
		// Book may have been deleted between the existence check and the
		// record insert; either way the asset is unreferenced now.
		slog.Warn("orphaned asset: cover record creation failed after asset write",
			"book_id", bookID, "storage_key", asset.Key, "err", coverErr)
		return Cover{}, fmt.Errorf("attach cover %s: %w", bookID, coverErr)
	}

	return cover, nil
}

// DeleteCover removes a cover record and then its backing asset. The asset
// delete is best-effort: once the record is gone the cover no longer exists
// from the caller's view, so an asset failure is logged and the record is
// never resurrected.
func (s *LibraryService) DeleteCover(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete cover: %w", err)
	}

	key, err := s.repo.DeleteCover(ctx, id)
	if err != nil {
		return fmt.Errorf("delete cover %s: %w", id, err)
	}

	s.deleteAsset(key, "cover_id", id.String())
	return nil
}

// DeleteBook removes a book and all its covers atomically, then deletes the
// backing assets. Per-asset failures are logged independently and do not
// abort the remaining deletes or reopen the metadata records.
func (s *LibraryService) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	keys, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}

	for _, key := range keys {
		s.deleteAsset(key, "book_id", id.String())
	}
	return nil
}

// compensateBook removes a book record created earlier in a failed
// multi-step operation. Runs on a background context so the compensation
// completes even if the request context is already cancelled.
func (s *LibraryService) compensateBook(id uuid.UUID, reason string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if _, err := s.repo.DeleteBook(cleanupCtx, id); err != nil {
		slog.Warn("compensating book delete failed; partial book record remains",
			"book_id", id, "reason", reason, "err", err)
	}
}

// deleteAsset deletes an asset after its metadata record is already gone.
// Failures leave an orphaned blob, logged for out-of-band reconciliation.
func (s *LibraryService) deleteAsset(key, ownerKind, ownerID string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	if err := s.assets.Delete(cleanupCtx, key); err != nil {
		slog.Warn("asset delete failed after metadata removal; asset orphaned",
			"storage_key", key, ownerKind, ownerID, "err", err)
	}
}
