package feedbin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedstand/services/feedbin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		require.True(t, ok, "requests must carry basic auth")
		assert.Equal(t, "me@example.com", username)
		assert.Equal(t, "secret", password)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		handler(w, r)
	}))
}

func TestAuthenticate(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authentication.json", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	c := feedbin.NewClient(srv.URL, "me@example.com", "secret", srv.Client())
	assert.NoError(t, c.Authenticate(context.Background()))
}

func TestAuthenticateBadCredentials(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	c := feedbin.NewClient(srv.URL, "me@example.com", "secret", srv.Client())
	err := c.Authenticate(context.Background())
	assert.ErrorContains(t, err, "invalid credentials")
}

func TestListSubscriptions(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions.json", r.URL.Path)
		w.Write([]byte(`[
			{"feed_id": 1, "title": "One", "feed_url": "https://one.example.com/feed", "site_url": "https://one.example.com"},
			{"feed_id": 2, "title": "Two", "feed_url": "https://two.example.com/feed", "site_url": "https://two.example.com"}
		]`)) //nolint:errcheck
	})
	defer srv.Close()

	c := feedbin.NewClient(srv.URL, "me@example.com", "secret", srv.Client())
	subs, err := c.ListSubscriptions(context.Background())
	require.NoError(t, err)

	require.Len(t, subs, 2)
	assert.Equal(t, int64(1), subs[0].ID)
	assert.Equal(t, "One", subs[0].Title)
	assert.Equal(t, "https://one.example.com/feed", subs[0].FeedURL)
}

func TestListEntriesPagination(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entries.json", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		w.Write([]byte(`[
			{"id": 10, "title": "Post", "url": "https://one.example.com/1", "summary": "Hi", "feed_id": 1, "published": "2026-01-02T03:04:05Z"}
		]`)) //nolint:errcheck
	})
	defer srv.Close()

	c := feedbin.NewClient(srv.URL, "me@example.com", "secret", srv.Client())
	entries, err := c.ListEntries(context.Background(), 3, 50)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, int64(10), entries[0].ID)
	assert.Equal(t, int64(1), entries[0].FeedID)
	assert.Equal(t, 2026, entries[0].PublishedAt.Year())
}

func TestListEntryIDs(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/unread_entries.json":
			w.Write([]byte(`[10, 11]`)) //nolint:errcheck
		case "/starred_entries.json":
			w.Write([]byte(`[12]`)) //nolint:errcheck
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	defer srv.Close()

	c := feedbin.NewClient(srv.URL, "me@example.com", "secret", srv.Client())

	unread, err := c.ListUnreadEntryIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, unread)

	starred, err := c.ListStarredEntryIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, starred)
}

func TestErrorIncludesBody(t *testing.T) {
	srv := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("nope")) //nolint:errcheck
	})
	defer srv.Close()

	c := feedbin.NewClient(srv.URL, "me@example.com", "secret", srv.Client())
	_, err := c.ListSubscriptions(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "403")
	assert.ErrorContains(t, err, "nope")
}
