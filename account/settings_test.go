package account_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"feedstand/account"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithMissingSettingsFile(t *testing.T) {
	a, err := account.New(account.Config{
		ID:         "test",
		Type:       account.OnMyMac,
		DataFolder: t.TempDir(),
		Delegate:   newStubDelegate(false),
	})
	require.NoError(t, err)
	assert.Empty(t, a.Children())
	assert.False(t, a.Saver().Dirty())
}

func TestNewWithMalformedSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, account.SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte("children: [\n"), 0o644))

	a, err := account.New(account.Config{
		ID:         "test",
		Type:       account.OnMyMac,
		DataFolder: dir,
		Delegate:   newStubDelegate(false),
	})
	require.NoError(t, err, "a corrupt file must not make the account unusable")
	assert.Empty(t, a.Children())
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	a, err := account.New(account.Config{
		ID:         "test",
		Type:       account.OnMyMac,
		DataFolder: dir,
		Delegate:   newStubDelegate(true),
		SaveDelay:  time.Hour,
	})
	require.NoError(t, err)

	news := a.EnsureFolder("News")
	nested := &account.Folder{Name: "Nested"}
	require.True(t, a.AddFolder(nested, news))

	top := a.CreateFeed("Top", "", "https://top.example.com/feed")
	shared := a.CreateFeed("Shared", "Renamed", "https://shared.example.com/feed")
	require.True(t, a.AddFeed(top, nil))
	require.True(t, a.AddFeed(shared, news))
	require.True(t, a.AddFeed(shared, nested))

	require.NoError(t, a.Saver().SaveNow())
	assert.False(t, a.Saver().Dirty())

	b, err := account.New(account.Config{
		ID:         "test",
		Type:       account.OnMyMac,
		DataFolder: dir,
		Delegate:   newStubDelegate(true),
		SaveDelay:  time.Hour,
	})
	require.NoError(t, err)

	children := b.Children()
	require.Len(t, children, 2)

	// Order survives: folder first, then the top-level feed.
	folder, ok := children[0].(*account.Folder)
	require.True(t, ok)
	assert.Equal(t, "News", folder.Name)

	feed, ok := children[1].(*account.Feed)
	require.True(t, ok)
	assert.Equal(t, "https://top.example.com/feed", feed.FeedID)
	assert.Equal(t, "Top", feed.Name)

	// The duplicated feed comes back as one canonical instance in both
	// containers, edited name intact.
	inner := b.ExistingSubFolder(folder, "Nested")
	require.NotNil(t, inner)
	require.Len(t, folder.Feeds(), 1)
	require.Len(t, inner.Feeds(), 1)
	assert.Same(t, folder.Feeds()[0], inner.Feeds()[0])
	assert.Equal(t, "Renamed", folder.Feeds()[0].NameForDisplay())
	assert.Len(t, b.Feeds(), 2)
}

func TestSettingsFileDiscriminator(t *testing.T) {
	dir := t.TempDir()

	a, err := account.New(account.Config{
		ID:         "test",
		Type:       account.OnMyMac,
		DataFolder: dir,
		Delegate:   newStubDelegate(false),
		SaveDelay:  time.Hour,
	})
	require.NoError(t, err)

	feed := a.CreateFeed("Example", "", "https://example.com/feed")
	require.True(t, a.AddFeed(feed, a.EnsureFolder("News")))
	require.NoError(t, a.Saver().SaveNow())

	data, err := os.ReadFile(filepath.Join(dir, account.SettingsFileName))
	require.NoError(t, err)

	// Feeds carry a url key, folders never do.
	assert.Contains(t, string(data), "url: https://example.com/feed")
	assert.Contains(t, string(data), "name: News")
}

func TestSaverDebounceCoalesces(t *testing.T) {
	var saves atomic.Int32
	s := account.NewSaver(50*time.Millisecond, func() error {
		saves.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		s.MarkDirty()
		time.Sleep(time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return saves.Load() == 1 && !s.Dirty()
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), saves.Load(), "burst of mutations collapses into one write")
}

func TestSaverDirtySurvivesFailedWrite(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	var saves atomic.Int32

	s := account.NewSaver(time.Hour, func() error {
		saves.Add(1)
		if fail.Load() {
			return errors.New("disk full")
		}
		return nil
	})

	var reported error
	s.SetOnError(func(err error) { reported = err })

	s.MarkDirty()
	require.Error(t, s.SaveNow())
	assert.True(t, s.Dirty(), "failed write keeps the dirty flag set")
	assert.Error(t, reported)

	fail.Store(false)
	require.NoError(t, s.SaveNow())
	assert.False(t, s.Dirty())
	assert.Equal(t, int32(2), saves.Load())
}

func TestSaverCancelPendingSave(t *testing.T) {
	var saves atomic.Int32
	s := account.NewSaver(30*time.Millisecond, func() error {
		saves.Add(1)
		return nil
	})

	s.MarkDirty()
	s.CancelPendingSave()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), saves.Load())
	assert.True(t, s.Dirty(), "cancelling the timer does not pretend the state is clean")
}

func TestSaverSaveNowWhenClean(t *testing.T) {
	var saves atomic.Int32
	s := account.NewSaver(time.Hour, func() error {
		saves.Add(1)
		return nil
	})

	require.NoError(t, s.SaveNow())
	assert.Equal(t, int32(0), saves.Load(), "nothing to write when not dirty")
}

func TestSaverMutationDuringWriteStaysDirty(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{})

	s := account.NewSaver(time.Hour, func() error {
		close(entered)
		<-block
		return nil
	})

	s.MarkDirty()
	done := make(chan error, 1)
	go func() { done <- s.SaveNow() }()

	<-entered
	// A mutation lands while the write is in flight; its changes are not in
	// the snapshot being written, so dirty must survive the write.
	s.MarkDirty()
	close(block)

	require.NoError(t, <-done)
	assert.True(t, s.Dirty())
}
