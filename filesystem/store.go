// Package filesystem stores cover images on local disk.
//
// All operations go through an os.Root, so keys can never escape the
// uploads directory. Files are written exclusively (never overwritten)
// and fsynced before the write is reported durable.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/google/uuid"

	"github.com/shelfkeep/shelfkeep"
)

// Store keeps assets as flat files inside a sandboxed root directory.
type Store struct {
	root    *os.Root
	baseURL string
}

// NewAssetStore creates a Store over root. baseURL is the public path
// prefix the server mounts the directory under, typically "/uploads".
func NewAssetStore(root *os.Root, baseURL string) *Store {
	return &Store{root: root, baseURL: baseURL}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Store writes content under a fresh collision-resistant key derived from
// the book ID and the current time. The file is created exclusively, so an
// existing asset can never be overwritten, and is fsynced before returning.
func (s *Store) Store(ctx context.Context, bookID uuid.UUID, contentType string, content io.Reader) (shelfkeep.StoredAsset, error) {
	if err := ctx.Err(); err != nil {
		return shelfkeep.StoredAsset{}, err
	}

	key := shelfkeep.NewStorageKey(bookID, contentType)

	f, err := s.root.OpenFile(key, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return shelfkeep.StoredAsset{}, fmt.Errorf("create asset file: %w", err)
	}

	success := false
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close asset file", "key", key, "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(key); rmErr != nil {
				slog.Warn("failed to remove partial asset file", "key", key, "err", rmErr)
			}
		}
	}()

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: content}); err != nil {
		return shelfkeep.StoredAsset{}, fmt.Errorf("write asset file: %w", err)
	}

	if err := f.Sync(); err != nil {
		return shelfkeep.StoredAsset{}, fmt.Errorf("sync asset file: %w", err)
	}

	success = true

	return shelfkeep.StoredAsset{
		URL: s.baseURL + "/" + key,
		Key: key,
	}, nil
}

// Delete removes the file for key. Deleting a key that no longer exists
// is not an error, so retries and double deletes are safe.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.root.Remove(key); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("delete asset file: %w", err)
	}
	return nil
}

// List returns the keys of every stored asset. Used by reconciliation to
// find files no cover record references.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys := make([]string, 0)

	err := fs.WalkDir(s.root.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		keys = append(keys, path.Clean(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list asset files: %w", err)
	}

	return keys, nil
}
