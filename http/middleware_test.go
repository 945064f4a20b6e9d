package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	shelfhttp "github.com/shelfkeep/shelfkeep/http"
)

func passwordProtected(password string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return shelfhttp.PasswordMiddleware(password)(next)
}

func TestPasswordMiddleware_HeaderAccepted(t *testing.T) {
	handler := passwordProtected("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("X-App-Password", "secret")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPasswordMiddleware_QueryParamAccepted(t *testing.T) {
	handler := passwordProtected("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/books?password=secret", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordMiddleware_WrongPassword(t *testing.T) {
	handler := passwordProtected("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("X-App-Password", "wrong")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid password")
}

func TestPasswordMiddleware_MissingPassword(t *testing.T) {
	handler := passwordProtected("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordMiddleware_HeaderTakesPrecedence(t *testing.T) {
	handler := passwordProtected("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/books?password=secret", nil)
	req.Header.Set("X-App-Password", "wrong")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
