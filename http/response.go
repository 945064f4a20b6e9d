package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shelfkeep/shelfkeep"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the error response matching the service error type.
// Validation details are surfaced to the caller; everything else collapses
// to a generic message so internals never leak through the API.
func HandleError(w http.ResponseWriter, err error) {
	slog.Error("request error", "error", err)

	switch {
	case errors.Is(err, shelfkeep.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shelfkeep.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, shelfkeep.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "Invalid password")
	default:
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
