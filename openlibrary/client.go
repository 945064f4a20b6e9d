// Package openlibrary is a small client for the Open Library search API,
// used to look up titles and cover images when adding a book from search.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shelfkeep/shelfkeep"
)

const defaultBaseURL = "https://openlibrary.org"

// maxResults caps how many docs a search maps into results.
const maxResults = 10

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient returns a Client rate limited to rps requests per second with
// up to maxRetries retries on transient failures.
func NewClient(userAgent string, rps int, maxRetries int) *Client {
	if rps < 1 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent:  userAgent,
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		maxRetries: maxRetries,
	}
}

// NewClientWithBaseURL is like NewClient against a different endpoint.
// Used by tests.
func NewClientWithBaseURL(baseURL, userAgent string, rps int, maxRetries int) *Client {
	c := NewClient(userAgent, rps, maxRetries)
	c.baseURL = baseURL
	return c
}

// searchResponse matches search.json
type searchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Title            string   `json:"title"`
		AuthorNames      []string `json:"author_name"`
		CoverID          int      `json:"cover_i"`
		FirstPublishYear int      `json:"first_publish_year"`
	} `json:"docs"`
}

// Search queries Open Library for books matching query and maps the first
// matches into results. Docs with a cover get a medium-size cover image URL.
func (c *Client) Search(ctx context.Context, query string) ([]shelfkeep.SearchResult, error) {
	u := fmt.Sprintf("%s/search.json?q=%s&fields=title,author_name,cover_i,first_publish_year&limit=%d",
		c.baseURL, url.QueryEscape(query), maxResults)

	var res searchResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	results := make([]shelfkeep.SearchResult, 0, len(res.Docs))
	for _, doc := range res.Docs {
		if len(results) == maxResults {
			break
		}

		r := shelfkeep.SearchResult{
			Title:            doc.Title,
			Author:           "Unknown Author",
			FirstPublishYear: doc.FirstPublishYear,
		}
		if len(doc.AuthorNames) > 0 {
			r.Author = strings.Join(doc.AuthorNames, ", ")
		}
		if doc.CoverID > 0 {
			r.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverID)
		}

		results = append(results, r)
	}

	return results, nil
}

func (c *Client) get(ctx context.Context, url string, target any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Backoff: 1s, 2s, 4s...
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
				continue
			}
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(target)
		_ = resp.Body.Close()
		return decodeErr
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}
