package openlibrary_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfkeep/shelfkeep/openlibrary"
)

func TestClient_Search_MapsDocs(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"numFound": 2,
			"docs": [
				{"title": "The Dispossessed", "author_name": ["Ursula K. Le Guin"], "cover_i": 12345, "first_publish_year": 1974},
				{"title": "Obscure Title", "first_publish_year": 2001}
			]
		}`))
	}))
	defer server.Close()

	client := openlibrary.NewClientWithBaseURL(server.URL, "shelfkeep-test", 10, 0)

	results, err := client.Search(context.Background(), "dispossessed")

	assert.NoError(t, err)
	assert.Equal(t, "dispossessed", gotQuery)
	assert.Len(t, results, 2)

	assert.Equal(t, "The Dispossessed", results[0].Title)
	assert.Equal(t, "Ursula K. Le Guin", results[0].Author)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/12345-M.jpg", results[0].CoverURL)
	assert.Equal(t, 1974, results[0].FirstPublishYear)

	assert.Equal(t, "Obscure Title", results[1].Title)
	assert.Equal(t, "Unknown Author", results[1].Author)
	assert.Empty(t, results[1].CoverURL)
}

func TestClient_Search_EmptyDocs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer server.Close()

	client := openlibrary.NewClientWithBaseURL(server.URL, "shelfkeep-test", 10, 0)

	results, err := client.Search(context.Background(), "no such book")

	assert.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestClient_Search_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"numFound": 0, "docs": []}`))
	}))
	defer server.Close()

	client := openlibrary.NewClientWithBaseURL(server.URL, "shelfkeep-test", 10, 2)

	results, err := client.Search(context.Background(), "retry")

	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Search_ClientErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := openlibrary.NewClientWithBaseURL(server.URL, "shelfkeep-test", 10, 3)

	_, err := client.Search(context.Background(), "bad request")

	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
