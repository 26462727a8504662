package articles

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/labstack/gommon/log"
	_ "modernc.org/sqlite"
)

// Store is the on-disk article database, one per data folder shared by all
// accounts. Rows are keyed by (account, article) so the same article ID in
// two accounts never collides.
type Store struct {
	db *sql.DB
}

// Open runs migrations and opens the article database.
func Open(path string) (*Store, error) {
	if err := Migrate(path); err != nil {
		return nil, fmt.Errorf("error migrating article store: %w", err)
	}

	db, err := connection(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func connection(database string) (*sql.DB, error) {
	// Enable foreign keys and WAL mode
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", database))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
	`); err != nil {
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AddArticles upserts fetched articles for one feed of one account.
func (s *Store) AddArticles(ctx context.Context, accountID, feedID string, items []Article) error {
	if len(items) == 0 {
		return nil
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("articles").Cols("account_id", "article_id", "feed_id", "title", "url", "summary", "published_at")
	for _, item := range items {
		ib.Values(accountID, item.ID, feedID, item.Title, item.URL, item.Summary, item.PublishedAt)
	}
	query, args := ib.Build()
	// Fetches overlap, keep the newest copy of each article
	query += " ON CONFLICT (account_id, article_id) DO UPDATE SET title = excluded.title, url = excluded.url, summary = excluded.summary, published_at = excluded.published_at"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Errorf("Error inserting articles: %v", err)
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

// MarkArticles sets one status flag on a set of articles. This is the call
// shape accounts forward to; unknown article IDs simply get status rows of
// their own.
func (s *Store) MarkArticles(ctx context.Context, accountID string, articleIDs []string, statusKey string, flag bool) error {
	if len(articleIDs) == 0 {
		return nil
	}
	if statusKey == "" {
		return fmt.Errorf("status key must not be empty")
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("statuses").Cols("account_id", "article_id", "status_key", "flag")
	for _, id := range articleIDs {
		ib.Values(accountID, id, statusKey, flag)
	}
	query, args := ib.Build()
	query += " ON CONFLICT (account_id, article_id, status_key) DO UPDATE SET flag = excluded.flag"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Errorf("Error marking articles: %v", err)
		return fmt.Errorf("mark error: %w", err)
	}
	return nil
}

// ArticlesForFeed returns the stored articles of one feed, newest first.
func (s *Store) ArticlesForFeed(ctx context.Context, accountID, feedID string, limit int) ([]Article, error) {
	if limit < 1 {
		limit = 50
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("article_id", "feed_id", "title", "url", "summary", "published_at").
		From("articles")
	sb.Where(sb.Equal("account_id", accountID), sb.Equal("feed_id", feedID))
	sb.OrderBy("published_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		var published sql.NullTime
		if err := rows.Scan(&a.ID, &a.FeedID, &a.Title, &a.URL, &a.Summary, &published); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if published.Valid {
			a.PublishedAt = published.Time
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// ArticleIDsWithStatus returns the article IDs of one account whose status
// flag matches, e.g. all starred articles.
func (s *Store) ArticleIDsWithStatus(ctx context.Context, accountID, statusKey string, flag bool) ([]string, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("article_id").From("statuses")
	sb.Where(sb.Equal("account_id", accountID), sb.Equal("status_key", statusKey), sb.Equal("flag", flag))
	sb.OrderBy("article_id").Asc()

	query, args := sb.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
