package shelfkeep

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry. Author and APICoverURL are optional and empty
// when absent; both serialize as empty strings to match the client contract.
type Book struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	APICoverURL string    `json:"apiCoverUrl"`
	AddedAt     time.Time `json:"addedDate"`
}

// Cover is one stored photo belonging to exactly one book. StorageKey is the
// backend-internal locator used to delete the underlying asset; it is never
// exposed to callers.
type Cover struct {
	ID         uuid.UUID `json:"id"`
	BookID     uuid.UUID `json:"bookId"`
	URL        string    `json:"url"`
	StorageKey string    `json:"-"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// BookWithCovers is a book together with its covers, newest first.
type BookWithCovers struct {
	Book
	Covers []Cover `json:"covers"`
}

// DisplayCoverURL resolves the single image representing the book:
// the external catalog cover if present, else the most recently uploaded
// user cover, else nothing. The result is computed, never stored.
func (b BookWithCovers) DisplayCoverURL() (string, bool) {
	if b.APICoverURL != "" {
		return b.APICoverURL, true
	}
	if len(b.Covers) > 0 {
		return b.Covers[0].URL, true
	}
	return "", false
}

// NewBook holds the fields for creating a book record.
type NewBook struct {
	Title       string
	Author      string
	APICoverURL string
}

// NewCover holds the fields for creating a cover record pointing at an
// already-stored asset.
type NewCover struct {
	BookID     uuid.UUID
	URL        string
	StorageKey string
}

// StoredAsset is the result of persisting a photo: the retrievable URL
// handed to clients and the backend-internal key used for deletion.
type StoredAsset struct {
	URL string
	Key string
}

// SearchResult is one entry from the external catalog search.
type SearchResult struct {
	Title            string `json:"title"`
	Author           string `json:"author"`
	CoverURL         string `json:"coverUrl"`
	FirstPublishYear int    `json:"firstPublishYear,omitempty"`
}
