package shelfkeep

import (
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// wellKnownExtensions pins extensions for the common photo types so stored
// file names do not depend on the platform mime table.
var wellKnownExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/heic":    ".heic",
	"image/svg+xml": ".svg",
}

// ExtensionForContentType returns the file extension for a MIME content type,
// including the leading dot. Unknown types yield an empty extension.
func ExtensionForContentType(contentType string) string {
	ct, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	if ext, ok := wellKnownExtensions[ct]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(ct)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// NewStorageKey derives a collision-resistant asset name from the owning
// book's ID, a nanosecond timestamp, and the extension matching the content
// type. Two concurrent stores for the same book get distinct keys.
func NewStorageKey(bookID uuid.UUID, contentType string) string {
	return fmt.Sprintf("%s-%d%s", bookID, time.Now().UnixNano(), ExtensionForContentType(contentType))
}

// IsImageContentType reports whether the content type names an image.
// Enforced at the transport boundary before any asset write.
func IsImageContentType(contentType string) bool {
	ct, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(ct, "image/")
}
