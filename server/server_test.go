package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedstand/account"
	"feedstand/articles"
	"feedstand/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	stored map[string][]articles.Article
}

func (r *fakeReader) ArticlesForFeed(ctx context.Context, accountID, feedID string, limit int) ([]articles.Article, error) {
	return r.stored[accountID+"|"+feedID], nil
}

func testManager(t *testing.T) *account.Manager {
	t.Helper()
	mgr := account.NewManager(account.ManagerConfig{
		DataFolder: t.TempDir(),
		Factory: func(typ account.Type, username string) (account.Delegate, error) {
			return account.NewLocalDelegate(nil), nil
		},
		SaveDelay: time.Hour,
	})
	require.NoError(t, mgr.Load())
	return mgr
}

func TestGetAccounts(t *testing.T) {
	app := server.Server(&server.ServerConfig{Manager: testManager(t), Articles: &fakeReader{}})

	resp, err := app.Test(httptest.NewRequest("GET", "/accounts", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var summaries []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "local", summaries[0]["id"])
	assert.Equal(t, "onmymac", summaries[0]["type"])
	assert.Equal(t, false, summaries[0]["refreshing"])
}

func TestGetTreeUnknownAccount(t *testing.T) {
	app := server.Server(&server.ServerConfig{Manager: testManager(t), Articles: &fakeReader{}})

	resp, err := app.Test(httptest.NewRequest("GET", "/accounts/nope/tree", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestAddFeedAndGetTree(t *testing.T) {
	mgr := testManager(t)
	app := server.Server(&server.ServerConfig{Manager: mgr, Articles: &fakeReader{}})

	body := strings.NewReader(`{"url": "https://example.com/feed", "name": "Example", "folder": "News"}`)
	req := httptest.NewRequest("POST", "/accounts/local/feeds", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/accounts/local/tree", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var nodes []map[string]any
	require.NoError(t, json.Unmarshal(data, &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "folder", nodes[0]["kind"])
	assert.Equal(t, "News", nodes[0]["name"])

	children := nodes[0]["children"].([]any)
	require.Len(t, children, 1)
	child := children[0].(map[string]any)
	assert.Equal(t, "feed", child["kind"])
	assert.Equal(t, "https://example.com/feed", child["url"])
}

func TestAddFeedValidation(t *testing.T) {
	app := server.Server(&server.ServerConfig{Manager: testManager(t), Articles: &fakeReader{}})

	req := httptest.NewRequest("POST", "/accounts/local/feeds", strings.NewReader(`{"name": "No url"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestRefreshAccount(t *testing.T) {
	app := server.Server(&server.ServerConfig{Manager: testManager(t), Articles: &fakeReader{}})

	resp, err := app.Test(httptest.NewRequest("POST", "/accounts/local/refresh", nil))
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	var snap map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Contains(t, snap, "numberRemaining")
}

func TestGetArticles(t *testing.T) {
	reader := &fakeReader{stored: map[string][]articles.Article{
		"local|https://example.com/feed": {
			{ID: "1", FeedID: "https://example.com/feed", Title: "Post"},
		},
	}}
	app := server.Server(&server.ServerConfig{Manager: testManager(t), Articles: reader})

	resp, err := app.Test(httptest.NewRequest("GET", "/accounts/local/articles?feed=https%3A%2F%2Fexample.com%2Ffeed", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var got []articles.Article
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Post", got[0].Title)

	resp, err = app.Test(httptest.NewRequest("GET", "/accounts/local/articles", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode, "feed parameter is required")
}

func TestExportOPML(t *testing.T) {
	mgr := testManager(t)
	local := mgr.Account("local")
	feed := local.CreateFeed("Example", "", "https://example.com/feed")
	require.True(t, local.AddFeed(feed, nil))

	app := server.Server(&server.ServerConfig{Manager: mgr, Articles: &fakeReader{}})

	resp, err := app.Test(httptest.NewRequest("GET", "/accounts/local/opml", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "opml")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `xmlUrl="https://example.com/feed"`)
}
