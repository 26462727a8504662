// Package fetch downloads and parses feeds for accounts that refresh
// on-device instead of through a sync service.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"feedstand/account"
	"feedstand/articles"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
)

// ArticleWriter is the slice of the article store the fetcher needs.
type ArticleWriter interface {
	AddArticles(ctx context.Context, accountID, feedID string, items []articles.Article) error
}

// Fetcher implements account.Refresher: one HTTP GET and parse per feed,
// with the stored result written to the article store. Transient HTTP
// failures are retried with exponential backoff.
type Fetcher struct {
	client    *http.Client
	store     ArticleWriter
	userAgent string
}

func New(client *http.Client, store ArticleWriter, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = "feedstand/1.0"
	}
	return &Fetcher{
		client:    client,
		store:     store,
		userAgent: userAgent,
	}
}

// RefreshFeed fetches one feed and stores its articles.
func (f *Fetcher) RefreshFeed(ctx context.Context, feed *account.Feed) error {
	parsed, err := f.fetch(ctx, feed.URL)
	if err != nil {
		return err
	}

	items := make([]articles.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		a := articles.Article{
			ID:     itemID(item),
			FeedID: feed.FeedID,
			Title:  item.Title,
			URL:    item.Link,
		}
		if item.Description != "" {
			a.Summary = item.Description
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		items = append(items, a)
	}

	log.WithFields(log.Fields{
		"feed":  feed.URL,
		"items": len(items),
	}).Debug("Fetched feed")

	return f.store.AddArticles(ctx, feed.AccountID, feed.FeedID, items)
}

func (f *Fetcher) fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	// Set up exponential backoff for transient fetch failures
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = time.Minute

	var parsed *gofeed.Feed
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		if err != nil {
			return err
		}

		parsed, err = gofeed.NewParser().ParseString(string(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("parse %s: %w", url, err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return parsed, nil
}

// itemID returns a stable identifier for an item, hashing title and link
// when the feed carries no GUID.
func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}
