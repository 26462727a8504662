package feedbin

import (
	"context"
	"strconv"
	"time"

	"feedstand/account"
	"feedstand/articles"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// ArticleStore is the slice of the article store the delegate writes to.
type ArticleStore interface {
	AddArticles(ctx context.Context, accountID, feedID string, items []articles.Article) error
	MarkArticles(ctx context.Context, accountID string, articleIDs []string, statusKey string, flag bool) error
}

// Delegate syncs an account against Feedbin. A refresh cycle is four
// operations reported through the shared progress object: subscriptions,
// entries, unread state, starred state. Feedbin has flat tags only, so
// sub-folders are unsupported.
type Delegate struct {
	client   *Client
	store    ArticleStore
	progress *account.RefreshProgress
}

func NewDelegate(client *Client, store ArticleStore) *Delegate {
	return &Delegate{
		client:   client,
		store:    store,
		progress: account.NewRefreshProgress(),
	}
}

func (d *Delegate) SupportsSubFolders() bool {
	return false
}

func (d *Delegate) Progress() *account.RefreshProgress {
	return d.progress
}

// RefreshAll returns immediately; the sync pipeline runs in the background
// and reports only through the progress object. Every stage completes its
// task even on failure so the account never sticks in the refreshing state.
func (d *Delegate) RefreshAll(ctx context.Context, a *account.Account) {
	d.progress.AddTasks(4)

	go func() {
		feedURLsByID := d.syncSubscriptions(ctx, a)
		d.syncEntries(ctx, a, feedURLsByID)
		d.syncStatus(ctx, a, d.client.ListUnreadEntryIDs, articles.StatusRead, false)
		d.syncStatus(ctx, a, d.client.ListStarredEntryIDs, articles.StatusStarred, true)
	}()
}

// syncSubscriptions reconciles the remote subscription list into the tree
// through the account's normal containment rules, so existing feeds are
// reused and nothing duplicates. Returns the Feedbin feed ID to URL map
// the entry stage needs.
func (d *Delegate) syncSubscriptions(ctx context.Context, a *account.Account) map[int64]string {
	defer d.progress.CompleteTask()

	var subs []Subscription
	err := d.retry(ctx, func() error {
		var err error
		subs, err = d.client.ListSubscriptions(ctx)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"account": a.ID,
			"error":   err,
		}).Error("Error listing Feedbin subscriptions")
		return nil
	}

	feedURLsByID := make(map[int64]string, len(subs))
	for _, sub := range subs {
		feedURLsByID[sub.ID] = sub.FeedURL
		feed := a.CreateFeed(sub.Title, "", sub.FeedURL)
		if feed == nil {
			continue
		}
		a.AddFeed(feed, nil)
	}
	return feedURLsByID
}

func (d *Delegate) syncEntries(ctx context.Context, a *account.Account, feedURLsByID map[int64]string) {
	defer d.progress.CompleteTask()

	if len(feedURLsByID) == 0 {
		return
	}

	var entries []Entry
	err := d.retry(ctx, func() error {
		var err error
		entries, err = d.client.ListEntries(ctx, 1, 100)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"account": a.ID,
			"error":   err,
		}).Error("Error listing Feedbin entries")
		return
	}

	byFeed := make(map[string][]articles.Article)
	for _, entry := range entries {
		feedURL, ok := feedURLsByID[entry.FeedID]
		if !ok {
			continue
		}
		byFeed[feedURL] = append(byFeed[feedURL], articles.Article{
			ID:          strconv.FormatInt(entry.ID, 10),
			FeedID:      feedURL,
			Title:       entry.Title,
			URL:         entry.URL,
			Summary:     entry.Summary,
			PublishedAt: entry.PublishedAt,
		})
	}

	for feedURL, items := range byFeed {
		if err := d.store.AddArticles(ctx, a.ID, feedURL, items); err != nil {
			log.WithFields(log.Fields{
				"account": a.ID,
				"feed":    feedURL,
				"error":   err,
			}).Error("Error storing Feedbin entries")
		}
	}
}

func (d *Delegate) syncStatus(ctx context.Context, a *account.Account, list func(context.Context) ([]int64, error), statusKey string, flag bool) {
	defer d.progress.CompleteTask()

	var ids []int64
	err := d.retry(ctx, func() error {
		var err error
		ids, err = list(ctx)
		return err
	})
	if err != nil {
		log.WithFields(log.Fields{
			"account": a.ID,
			"status":  statusKey,
			"error":   err,
		}).Error("Error listing Feedbin entry state")
		return
	}
	if len(ids) == 0 {
		return
	}

	articleIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		articleIDs = append(articleIDs, strconv.FormatInt(id, 10))
	}

	if err := a.MarkArticles(ctx, articleIDs, statusKey, flag); err != nil {
		log.WithFields(log.Fields{
			"account": a.ID,
			"status":  statusKey,
			"error":   err,
		}).Error("Error marking Feedbin entry state")
	}
}

func (d *Delegate) retry(ctx context.Context, operation func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
