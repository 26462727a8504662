package opml_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"feedstand/account"
	"feedstand/opml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDelegate struct {
	progress   *account.RefreshProgress
	subFolders bool
}

func (d *stubDelegate) RefreshAll(ctx context.Context, a *account.Account) {}

func (d *stubDelegate) SupportsSubFolders() bool { return d.subFolders }

func (d *stubDelegate) Progress() *account.RefreshProgress { return d.progress }

func newTestAccount(t *testing.T, subFolders bool) *account.Account {
	t.Helper()
	a, err := account.New(account.Config{
		ID:         "test",
		Type:       account.OnMyMac,
		DataFolder: t.TempDir(),
		Delegate:   &stubDelegate{progress: account.NewRefreshProgress(), subFolders: subFolders},
		SaveDelay:  time.Hour,
	})
	require.NoError(t, err)
	return a
}

const sampleOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="Top" type="rss" xmlUrl="https://top.example.com/feed"/>
    <outline text="News" title="News">
      <outline text="One" type="rss" xmlUrl="https://one.example.com/feed"/>
      <outline text="Inner" title="Inner">
        <outline text="Two" type="rss" xmlUrl="https://two.example.com/feed"/>
      </outline>
    </outline>
  </body>
</opml>`

func TestImportWithSubFolders(t *testing.T) {
	a := newTestAccount(t, true)
	require.NoError(t, opml.ImportInto(a, strings.NewReader(sampleOPML)))

	assert.NotNil(t, a.ExistingFeed("https://top.example.com/feed"))

	news := a.ExistingFolder("News")
	require.NotNil(t, news)
	require.Len(t, news.Feeds(), 1)
	assert.Equal(t, "One", news.Feeds()[0].Name)

	inner := a.ExistingSubFolder(news, "Inner")
	require.NotNil(t, inner)
	require.Len(t, inner.Feeds(), 1)
	assert.Equal(t, "https://two.example.com/feed", inner.Feeds()[0].FeedID)

	assert.Len(t, a.Feeds(), 3)
}

func TestImportFlattensWithoutSubFolders(t *testing.T) {
	a := newTestAccount(t, false)
	require.NoError(t, opml.ImportInto(a, strings.NewReader(sampleOPML)))

	news := a.ExistingFolder("News")
	require.NotNil(t, news)
	assert.Nil(t, a.ExistingSubFolder(news, "Inner"))

	// The nested feed lands in the first folder level instead.
	require.Len(t, news.Feeds(), 2)
	assert.Len(t, a.Feeds(), 3)
}

func TestImportIsIdempotent(t *testing.T) {
	a := newTestAccount(t, true)
	require.NoError(t, opml.ImportInto(a, strings.NewReader(sampleOPML)))
	require.NoError(t, opml.ImportInto(a, strings.NewReader(sampleOPML)))

	assert.Len(t, a.Feeds(), 3)
	assert.Len(t, a.ExistingFolder("News").Feeds(), 1)
	assert.Len(t, a.Children(), 2)
}

func TestImportMalformedDocument(t *testing.T) {
	a := newTestAccount(t, true)
	err := opml.ImportInto(a, strings.NewReader("<opml><body>"))
	assert.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	a := newTestAccount(t, true)
	require.NoError(t, opml.ImportInto(a, strings.NewReader(sampleOPML)))

	doc, err := opml.Export(a)
	require.NoError(t, err)

	b := newTestAccount(t, true)
	require.NoError(t, opml.ImportInto(b, strings.NewReader(string(doc))))

	assert.Len(t, b.Feeds(), 3)
	news := b.ExistingFolder("News")
	require.NotNil(t, news)
	assert.NotNil(t, b.ExistingSubFolder(news, "Inner"))
}

func TestExportUsesEditedNames(t *testing.T) {
	a := newTestAccount(t, false)
	feed := a.CreateFeed("Original", "Edited", "https://example.com/feed")
	require.True(t, a.AddFeed(feed, nil))

	doc, err := opml.Export(a)
	require.NoError(t, err)

	assert.Contains(t, string(doc), `text="Edited"`)
	assert.NotContains(t, string(doc), `text="Original"`)
}
