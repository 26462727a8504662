// Package feedbin implements the Feedbin synchronization backend.
package feedbin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.feedbin.com/v2"

// Subscription is the subset of Feedbin feed metadata the account needs.
type Subscription struct {
	ID      int64  `json:"feed_id"`
	Title   string `json:"title"`
	FeedURL string `json:"feed_url"`
	SiteURL string `json:"site_url"`
}

// Entry is the subset of Feedbin entry fields the account stores.
type Entry struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	FeedID      int64     `json:"feed_id"`
	PublishedAt time.Time `json:"published"`
}

// Client talks to the Feedbin REST API with HTTP basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

func NewClient(baseURL, username, password string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     httpClient,
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	req, err := c.newRequest(ctx, "/authentication.json")
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
		return fmt.Errorf("authentication failed: invalid credentials")
	}
	return fmt.Errorf("authenticate failed with status %d: %s", resp.StatusCode, readError(resp.Body))
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	req, err := c.newRequest(ctx, "/subscriptions.json")
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list subscriptions failed with status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var subscriptions []Subscription
	if err := json.NewDecoder(resp.Body).Decode(&subscriptions); err != nil {
		return nil, fmt.Errorf("decode subscriptions response: %w", err)
	}
	return subscriptions, nil
}

func (c *Client) ListEntries(ctx context.Context, page, perPage int) ([]Entry, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 100
	}

	q := make(url.Values)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	req, err := c.newRequest(ctx, "/entries.json?"+q.Encode())
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list entries request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list entries failed with status %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode entries response: %w", err)
	}
	return entries, nil
}

func (c *Client) ListUnreadEntryIDs(ctx context.Context) ([]int64, error) {
	return c.listEntryIDs(ctx, "/unread_entries.json", "unread entries")
}

func (c *Client) ListStarredEntryIDs(ctx context.Context) ([]int64, error) {
	return c.listEntryIDs(ctx, "/starred_entries.json", "starred entries")
}

func (c *Client) listEntryIDs(ctx context.Context, path, resource string) ([]int64, error) {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s request failed: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list %s failed with status %d: %s", resource, resp.StatusCode, readError(resp.Body))
	}

	var ids []int64
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", resource, err)
	}
	return ids, nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func readError(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return strings.TrimSpace(string(data))
}
