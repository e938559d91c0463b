// Package newsapi is the HTTP client for the remote feed service. It
// implements the query contract (paginated feed reads) and the mutation
// contract (saved-flag toggles) consumed by the sync engine.
package newsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/glabrego/prism-cli/internal/feed"
)

// Query describes one page request. An empty Cursor asks for the first
// page.
type Query struct {
	Mode    feed.Mode
	Filters map[string]string
	Cursor  string
	Limit   int
}

// SaveResult is the server's authoritative state after a mutation.
type SaveResult struct {
	Saved   bool  `json:"saved"`
	Version int64 `json:"version"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client for the given base URL. An empty token
// leaves requests unauthenticated (guest tier). A nil httpClient gets a
// 10s-timeout default.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// Authenticate verifies the configured bearer token.
func (c *Client) Authenticate(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/account", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("authentication failed: invalid token")
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("authenticate failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// feedItem is the wire shape of an item. Everything beyond the three
// engine fields stays in the raw message and is carried through as the
// item payload.
type feedItem struct {
	ID      string `json:"id"`
	Saved   bool   `json:"saved"`
	Version int64  `json:"version"`
}

type feedResponse struct {
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
}

// QueryPage fetches one page of the feed identified by q.
func (c *Client) QueryPage(ctx context.Context, q Query) (feed.Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return feed.Page{}, fmt.Errorf("rate limit wait: %w", err)
	}

	if q.Limit < 1 {
		q.Limit = 20
	}

	vals := make(url.Values)
	vals.Set("mode", string(q.Mode))
	vals.Set("limit", strconv.Itoa(q.Limit))
	if q.Cursor != "" {
		vals.Set("cursor", q.Cursor)
	}
	for k, v := range q.Filters {
		vals.Set(k, v)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/feed?"+vals.Encode(), nil)
	if err != nil {
		return feed.Page{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return feed.Page{}, fmt.Errorf("query feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return feed.Page{}, fmt.Errorf("query feed failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var fr feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return feed.Page{}, fmt.Errorf("decode feed response: %w", err)
	}

	page := feed.Page{NextCursor: fr.NextCursor, Items: make([]feed.Item, 0, len(fr.Items))}
	for _, raw := range fr.Items {
		var fi feedItem
		if err := json.Unmarshal(raw, &fi); err != nil {
			return feed.Page{}, fmt.Errorf("decode feed item: %w", err)
		}
		if fi.ID == "" {
			return feed.Page{}, fmt.Errorf("feed item missing id")
		}
		page.Items = append(page.Items, feed.Item{
			ID:      fi.ID,
			Saved:   fi.Saved,
			Version: fi.Version,
			Payload: raw,
		})
	}
	return page, nil
}

// ToggleSaved sends a saved-flag mutation tagged with the version it
// was computed from and returns the server's authoritative state.
func (c *Client) ToggleSaved(ctx context.Context, itemID string, desired bool, fromVersion int64) (SaveResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return SaveResult{}, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"saved":        desired,
		"from_version": fromVersion,
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode mutation: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/saved", bytes.NewReader(payload))
	if err != nil {
		return SaveResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SaveResult{}, fmt.Errorf("toggle saved request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SaveResult{}, fmt.Errorf("toggle saved failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result SaveResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SaveResult{}, fmt.Errorf("decode mutation response: %w", err)
	}
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
