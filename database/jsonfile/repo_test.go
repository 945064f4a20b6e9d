package jsonfile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep"
	"github.com/shelfkeep/shelfkeep/database/jsonfile"
)

func newTestRepo(t *testing.T) (*jsonfile.Repo, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "library.json")
	repo, err := jsonfile.NewRepo(path)
	require.NoError(t, err)

	return repo, path
}

func TestNewRepo_InitializesEmptyCatalog(t *testing.T) {
	_, path := newTestRepo(t)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.JSONEq(t, `[]`, string(data["books"]))
	assert.JSONEq(t, `[]`, string(data["covers"]))
}

func TestNewRepo_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "library.json")

	_, err := jsonfile.NewRepo(path)

	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewRepo_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := jsonfile.NewRepo(path)

	assert.Error(t, err)
}

func TestRepo_CreateAndGetBook(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	book, err := repo.CreateBook(ctx, shelfkeep.NewBook{
		Title:       "The Left Hand of Darkness",
		Author:      "Ursula K. Le Guin",
		APICoverURL: "https://covers.openlibrary.org/b/id/42-M.jpg",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.False(t, book.AddedAt.IsZero())

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, got)
}

func TestRepo_GetBook_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetBook(context.Background(), uuid.New())

	assert.ErrorIs(t, err, shelfkeep.ErrNotFound)
}

func TestRepo_CreateCover(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	book, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Book"})
	require.NoError(t, err)

	cover, err := repo.CreateCover(ctx, shelfkeep.NewCover{
		BookID:     book.ID,
		URL:        "/uploads/cover.jpg",
		StorageKey: "cover.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, book.ID, cover.BookID)
	assert.Equal(t, "cover.jpg", cover.StorageKey)
	assert.False(t, cover.UploadedAt.IsZero())
}

func TestRepo_CreateCover_UnknownBook(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.CreateCover(context.Background(), shelfkeep.NewCover{
		BookID: uuid.New(),
		URL:    "/uploads/cover.jpg",
	})

	assert.ErrorIs(t, err, shelfkeep.ErrNotFound)
}

func TestRepo_ListBooks_OrderAndEmbedding(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "First"})
	require.NoError(t, err)
	second, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Second"})
	require.NoError(t, err)

	older, err := repo.CreateCover(ctx, shelfkeep.NewCover{BookID: first.ID, URL: "/uploads/a.jpg", StorageKey: "a.jpg"})
	require.NoError(t, err)
	newer, err := repo.CreateCover(ctx, shelfkeep.NewCover{BookID: first.ID, URL: "/uploads/b.jpg", StorageKey: "b.jpg"})
	require.NoError(t, err)

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)

	// Most recent book first
	assert.Equal(t, second.ID, books[0].ID)
	assert.Equal(t, first.ID, books[1].ID)

	// Covers newest first, empty slice for the coverless book
	assert.NotNil(t, books[0].Covers)
	assert.Empty(t, books[0].Covers)
	require.Len(t, books[1].Covers, 2)
	if !newer.UploadedAt.Equal(older.UploadedAt) {
		assert.Equal(t, newer.ID, books[1].Covers[0].ID)
	}
}

func TestRepo_ListBooks_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	books, err := repo.ListBooks(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func TestRepo_DeleteCover(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	book, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Book"})
	require.NoError(t, err)
	cover, err := repo.CreateCover(ctx, shelfkeep.NewCover{BookID: book.ID, URL: "/uploads/x.jpg", StorageKey: "x.jpg"})
	require.NoError(t, err)

	key, err := repo.DeleteCover(ctx, cover.ID)
	require.NoError(t, err)
	assert.Equal(t, "x.jpg", key)

	// Second delete loses
	_, err = repo.DeleteCover(ctx, cover.ID)
	assert.ErrorIs(t, err, shelfkeep.ErrNotFound)
}

func TestRepo_DeleteBook_Cascades(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	book, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Book"})
	require.NoError(t, err)
	keep, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Keep"})
	require.NoError(t, err)

	_, err = repo.CreateCover(ctx, shelfkeep.NewCover{BookID: book.ID, URL: "/uploads/a.jpg", StorageKey: "a.jpg"})
	require.NoError(t, err)
	_, err = repo.CreateCover(ctx, shelfkeep.NewCover{BookID: book.ID, URL: "/uploads/b.jpg", StorageKey: "b.jpg"})
	require.NoError(t, err)
	keepCover, err := repo.CreateCover(ctx, shelfkeep.NewCover{BookID: keep.ID, URL: "/uploads/c.jpg", StorageKey: "c.jpg"})
	require.NoError(t, err)

	keys, err := repo.DeleteBook(ctx, book.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, keys)

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, keep.ID, books[0].ID)
	require.Len(t, books[0].Covers, 1)
	assert.Equal(t, keepCover.ID, books[0].Covers[0].ID)
}

func TestRepo_DeleteBook_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.DeleteBook(context.Background(), uuid.New())

	assert.ErrorIs(t, err, shelfkeep.ErrNotFound)
}

func TestRepo_ConcurrentDeleteBook_OneWinner(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	book, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Contested"})
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = repo.DeleteBook(ctx, book.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, shelfkeep.ErrNotFound)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestRepo_ConcurrentCreates_NoLostWrites(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	const workers = 10

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Book"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, workers)
}

func TestRepo_ContextCanceled(t *testing.T) {
	repo, _ := newTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.CreateBook(ctx, shelfkeep.NewBook{Title: "Book"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = repo.ListBooks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
