package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/shelfkeep/shelfkeep"
)

// DefaultMaxUploadSize caps cover photo uploads at 5 MB.
const DefaultMaxUploadSize = 5 << 20

// multipart boundary and field overhead allowed beyond the photo itself
const formOverhead = 64 << 10

type Service interface {
	ListBooks(ctx context.Context) ([]shelfkeep.BookWithCovers, error)
	CreateBookWithPhoto(ctx context.Context, nb shelfkeep.NewBook, photo shelfkeep.Photo) (shelfkeep.BookWithCovers, error)
	CreateBookFromSearch(ctx context.Context, nb shelfkeep.NewBook, photo *shelfkeep.Photo) (shelfkeep.BookWithCovers, error)
	AttachCover(ctx context.Context, bookID uuid.UUID, photo shelfkeep.Photo) (shelfkeep.Cover, error)
	DeleteCover(ctx context.Context, id uuid.UUID) error
	DeleteBook(ctx context.Context, id uuid.UUID) error
}

// Searcher queries the external catalog.
type Searcher interface {
	Search(ctx context.Context, query string) ([]shelfkeep.SearchResult, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	Password        string
	MaxUploadSize   int64
	DatabaseBackend string
	StorageBackend  string
	CORS            CORSConfig
}

// Handler provides the HTTP API over the library service.
type Handler struct {
	config  HandlerConfig
	service Service
	search  Searcher
	uploads http.Handler
}

// NewHandler creates a Handler. uploads serves stored cover files and may be
// nil when assets live on remote storage with their own public URLs.
func NewHandler(config *HandlerConfig, service Service, search Searcher, uploads http.Handler) *Handler {
	h := &Handler{
		config:  *config,
		service: service,
		search:  search,
		uploads: uploads,
	}
	if h.config.MaxUploadSize <= 0 {
		h.config.MaxUploadSize = DefaultMaxUploadSize
	}
	return h
}

// Router returns the configured http.Handler. Health, password verification
// and catalog search are open; every catalog route requires the password.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/api/health", h.handleHealth)
	r.Post("/api/verify-password", h.handleVerifyPassword)
	r.Get("/api/search", h.handleSearch)

	r.Group(func(r chi.Router) {
		r.Use(PasswordMiddleware(h.config.Password))
		r.Get("/api/books", h.handleListBooks)
		r.Post("/api/books", h.handleCreateBook)
		r.Post("/api/books/from-search", h.handleCreateBookFromSearch)
		r.Post("/api/books/{bookID}/covers", h.handleAttachCover)
		r.Delete("/api/covers/{coverID}", h.handleDeleteCover)
		r.Delete("/api/books/{bookID}", h.handleDeleteBook)
	})

	if h.uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", h.uploads))
	}

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"database":           h.config.DatabaseBackend,
		"storage":            h.config.StorageBackend,
		"passwordProtection": true,
		"photoUploads":       true,
	})
}

func (h *Handler) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !passwordMatches(h.config.Password, body.Password) {
		_ = WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "Invalid password",
		})
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		_ = WriteJSON(w, http.StatusOK, []shelfkeep.SearchResult{})
		return
	}

	results, err := h.search.Search(r.Context(), query)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, results)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.parsePhotoForm(w, r)
	if !ok {
		return
	}
	if photo == nil {
		WriteError(w, http.StatusBadRequest, "Photo is required when adding books manually")
		return
	}

	nb := shelfkeep.NewBook{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		APICoverURL: r.FormValue("apiCoverUrl"),
	}

	book, err := h.service.CreateBookWithPhoto(r.Context(), nb, *photo)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, book)
}

// handleCreateBookFromSearch accepts JSON for cover-from-API adds and
// multipart when the client pairs the search result with its own photo.
func (h *Handler) handleCreateBookFromSearch(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		photo, ok := h.parsePhotoForm(w, r)
		if !ok {
			return
		}

		nb := shelfkeep.NewBook{
			Title:       r.FormValue("title"),
			Author:      r.FormValue("author"),
			APICoverURL: r.FormValue("apiCoverUrl"),
		}

		book, err := h.service.CreateBookFromSearch(r.Context(), nb, photo)
		if err != nil {
			HandleError(w, err)
			return
		}

		_ = WriteJSON(w, http.StatusOK, book)
		return
	}

	var body struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		APICoverURL string `json:"apiCoverUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	nb := shelfkeep.NewBook{
		Title:       body.Title,
		Author:      body.Author,
		APICoverURL: body.APICoverURL,
	}

	book, err := h.service.CreateBookFromSearch(r.Context(), nb, nil)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleAttachCover(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}

	photo, ok := h.parsePhotoForm(w, r)
	if !ok {
		return
	}
	if photo == nil {
		WriteError(w, http.StatusBadRequest, "Photo is required")
		return
	}

	cover, err := h.service.AttachCover(r.Context(), bookID, *photo)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, cover)
}

func (h *Handler) handleDeleteCover(w http.ResponseWriter, r *http.Request) {
	coverID, err := uuid.Parse(chi.URLParam(r, "coverID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid cover ID")
		return
	}

	if err := h.service.DeleteCover(r.Context(), coverID); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid book ID")
		return
	}

	if err := h.service.DeleteBook(r.Context(), bookID); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// parsePhotoForm parses the multipart form and extracts the optional photo
// part, enforcing the size cap and the image-only content type rule. The
// returned bool is false when a response has already been written.
func (h *Handler) parsePhotoForm(w http.ResponseWriter, r *http.Request) (*shelfkeep.Photo, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+formOverhead)

	if err := r.ParseMultipartForm(h.config.MaxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "Photo exceeds the size limit")
			return nil, false
		}
		WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return nil, false
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		WriteError(w, http.StatusBadRequest, "Invalid photo upload")
		return nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if !shelfkeep.IsImageContentType(contentType) {
		_ = file.Close()
		WriteError(w, http.StatusBadRequest, "Only image files are allowed")
		return nil, false
	}

	return &shelfkeep.Photo{Content: file, ContentType: contentType}, true
}
