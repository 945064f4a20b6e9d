package shelfkeep

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BookRepo defines the metadata persistence contract for books and covers.
// Implementations must persist durably before returning and keep the
// cover→book reference valid: a cover can only be created for a book that
// exists at write time, and deleting a book removes all its covers in the
// same atomic step.
//
// All methods accept a context for cancellation and timeout control.
type BookRepo interface {
	// CreateBook persists a new book record. The implementation assigns the
	// ID and creation timestamp.
	CreateBook(ctx context.Context, b NewBook) (Book, error)

	// GetBook retrieves a single book by ID.
	//
	// Returns ErrNotFound if the book does not exist.
	GetBook(ctx context.Context, id uuid.UUID) (Book, error)

	// CreateCover persists a cover record referencing an already-stored
	// asset. The implementation assigns the ID and upload timestamp.
	//
	// Returns ErrNotFound if the referenced book does not exist at write
	// time, regardless of backend.
	CreateCover(ctx context.Context, c NewCover) (Cover, error)

	// ListBooks returns every book with its covers embedded. Books are
	// ordered most recently added first; covers within a book most recently
	// uploaded first. Returns an empty slice (not nil) when the catalog is
	// empty.
	ListBooks(ctx context.Context) ([]BookWithCovers, error)

	// DeleteCover removes a cover record and returns its storage key so the
	// caller can delete the backing asset. It must not touch the asset
	// itself; metadata and asset failures stay independently observable.
	//
	// Returns ErrNotFound if the cover does not exist.
	DeleteCover(ctx context.Context, id uuid.UUID) (string, error)

	// DeleteBook removes a book and all its cover records in one atomic
	// step, returning every removed cover's storage key for asset cleanup.
	// No partial cascade may be visible to subsequent reads.
	//
	// Returns ErrNotFound if the book does not exist.
	DeleteBook(ctx context.Context, id uuid.UUID) ([]string, error)
}

// AssetStore defines the binary photo persistence contract.
// Implementations can use the local filesystem or any S3-compatible object
// store.
type AssetStore interface {
	// Store persists the photo and returns its retrievable URL together
	// with the backend-internal key used for deletion.
	//
	// Implementations must:
	//   - Derive a collision-resistant key from the book ID so concurrent
	//     stores for the same book never collide
	//   - Never overwrite an existing object
	//   - Persist durably before returning
	//
	// Content validation (image types only, size ceiling) is the transport
	// boundary's job; the store accepts whatever bytes it is given.
	Store(ctx context.Context, bookID uuid.UUID, contentType string, content io.Reader) (StoredAsset, error)

	// Delete removes the asset identified by key. Deleting an already-absent
	// asset is not an error; this keeps retries and previously-failed
	// cascades safe.
	Delete(ctx context.Context, key string) error
}
