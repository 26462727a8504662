package account

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// ErrNoArticleStore is returned by MarkArticles when the account was built
// without an article store.
var ErrNoArticleStore = errors.New("account has no article store")

// ArticleStore is the boundary to the on-disk article database. The account
// only forwards status changes; the store's schema is its own concern.
type ArticleStore interface {
	MarkArticles(ctx context.Context, accountID string, articleIDs []string, statusKey string, flag bool) error
}

// Config carries everything an account needs at construction time.
type Config struct {
	ID         string
	Type       Type
	DataFolder string // per-account folder holding the settings file
	Delegate   Delegate
	Articles   ArticleStore
	Events     *Broadcaster  // shared event sink; nil creates a private one
	SaveDelay  time.Duration // zero means DefaultSaveDelay
}

// Account owns one subscription tree, bound to exactly one synchronization
// backend. All tree state is guarded by a single mutex: mutations, index
// rebuilds and settings snapshots are serialized per account, while the
// delegate's refresh work runs out-of-band and re-enters through the
// progress hook.
//
// Accounts are compared by identity only, never by content.
type Account struct {
	ID       string
	Type     Type
	Name     string
	Username string

	mu        sync.Mutex
	children  []Entity
	feedIndex map[string]*Feed

	refreshInProgress bool
	refreshStarting   bool

	delegate   Delegate
	saver      *Saver
	events     *Broadcaster
	articles   ArticleStore
	dataFolder string
}

// New loads the account from its settings file. A missing or malformed
// file yields an empty tree; the account is always usable.
func New(cfg Config) (*Account, error) {
	if cfg.Delegate == nil {
		return nil, errors.New("account requires a delegate")
	}

	a := &Account{
		ID:         cfg.ID,
		Type:       cfg.Type,
		delegate:   cfg.Delegate,
		events:     cfg.Events,
		articles:   cfg.Articles,
		dataFolder: cfg.DataFolder,
		feedIndex:  make(map[string]*Feed),
	}
	if a.events == nil {
		a.events = NewBroadcaster()
	}

	sf, err := loadSettingsFile(settingsPath(cfg.DataFolder))
	switch {
	case err == nil:
		a.Name = sf.Name
		a.Username = sf.Username
		feeds := make(map[string]*Feed)
		a.children = entitiesFromRecords(sf.Children, a.ID, feeds)
	case os.IsNotExist(err):
		log.WithFields(log.Fields{
			"account": a.ID,
		}).Info("No settings file, starting with an empty tree")
	default:
		log.WithFields(log.Fields{
			"account": a.ID,
			"error":   err,
		}).Warn("Could not read settings file, starting with an empty tree")
	}

	a.rebuildFeedIndexLocked()
	a.saver = NewSaver(cfg.SaveDelay, a.writeSettings)
	a.delegate.Progress().SetOnChange(a.progressDidChange)

	return a, nil
}

// Events returns the account's event sink.
func (a *Account) Events() *Broadcaster {
	return a.events
}

// Saver exposes the persistence component, mainly so callers can flush
// pending changes on shutdown.
func (a *Account) Saver() *Saver {
	return a.saver
}

func (a *Account) Delegate() Delegate {
	return a.delegate
}

// Children returns a copy of the top-level entity sequence, in order.
func (a *Account) Children() []Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entity(nil), a.children...)
}

// Feeds returns every distinct feed reachable from the tree.
func (a *Account) Feeds() []*Feed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo.Values(a.feedIndex)
}

// ExistingFeed returns the canonical feed for the given ID, or nil.
func (a *Account) ExistingFeed(feedID string) *Feed {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feedIndex[feedID]
}

// ExistingFolder returns the top-level folder with the given name, or nil.
func (a *Account) ExistingFolder(name string) *Folder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.topLevelFolderLocked(name)
}

// ExistingSubFolder returns the named folder directly inside parent, or
// nil. A nil parent looks at the top level.
func (a *Account) ExistingSubFolder(parent *Folder, name string) *Folder {
	a.mu.Lock()
	defer a.mu.Unlock()

	if parent == nil {
		return a.topLevelFolderLocked(name)
	}
	for _, e := range parent.Children {
		if fo, ok := e.(*Folder); ok && fo.Name == name {
			return fo
		}
	}
	return nil
}

// CreateFeed returns the existing canonical feed when one with this URL is
// already in the tree, updating its edited name if one is supplied.
// Otherwise it constructs a new, unattached feed: insertion is a separate,
// explicit step.
func (a *Account) CreateFeed(name, editedName, url string) *Feed {
	if url == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.feedIndex[url]; ok {
		if editedName != "" && existing.EditedName != editedName {
			existing.EditedName = editedName
			a.saver.MarkDirty()
		}
		return existing
	}

	return &Feed{
		FeedID:     url,
		URL:        url,
		Name:       name,
		EditedName: editedName,
		AccountID:  a.ID,
	}
}

// CanAddFeed reports whether AddFeed would actually insert: the container
// must exist and must not already hold the feed.
func (a *Account) CanAddFeed(f *Feed, folder *Folder) bool {
	if f == nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	children := a.containerLocked(folder)
	if children == nil {
		return false
	}
	return !containsFeed(*children, f.FeedID)
}

// AddFeed inserts the feed into the given folder, or the top level when
// folder is nil. Inserting a feed already present in that container is an
// idempotent no-op reporting success. When the same feed ID already exists
// elsewhere in the tree, the canonical instance is inserted instead of the
// caller's, so one subscription never diverges into several copies.
func (a *Account) AddFeed(f *Feed, folder *Folder) bool {
	if f == nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	children := a.containerLocked(folder)
	if children == nil {
		return false
	}
	if containsFeed(*children, f.FeedID) {
		return true
	}

	if canonical, ok := a.feedIndex[f.FeedID]; ok {
		f = canonical
	}
	f.AccountID = a.ID

	*children = append(*children, f)
	a.rebuildFeedIndexLocked()
	a.saver.MarkDirty()
	return true
}

// RemoveFeed removes the feed from the given container. The feed stays
// canonical while any other container still references it.
func (a *Account) RemoveFeed(f *Feed, folder *Folder) bool {
	if f == nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	children := a.containerLocked(folder)
	if children == nil || !containsFeed(*children, f.FeedID) {
		return false
	}

	*children = lo.Reject(*children, func(e Entity, _ int) bool {
		fe, ok := e.(*Feed)
		return ok && fe.FeedID == f.FeedID
	})
	a.rebuildFeedIndexLocked()
	a.saver.MarkDirty()
	return true
}

// CanAddFolder reports whether AddFolder would insert. Nesting under a
// parent folder requires the backend to support sub-folders.
func (a *Account) CanAddFolder(folder *Folder, parent *Folder) bool {
	if folder == nil {
		return false
	}
	if parent != nil && !a.delegate.SupportsSubFolders() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	children := a.containerLocked(parent)
	if children == nil {
		return false
	}
	return !containsFolder(*children, folder.Name)
}

// AddFolder inserts the folder at the top level, or under parent when the
// backend supports sub-folders. Adding a folder whose name is already
// present in the container is an idempotent no-op reporting success.
func (a *Account) AddFolder(folder *Folder, parent *Folder) bool {
	if folder == nil {
		return false
	}
	if parent != nil && !a.delegate.SupportsSubFolders() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	children := a.containerLocked(parent)
	if children == nil {
		return false
	}
	if containsFolder(*children, folder.Name) {
		return true
	}

	*children = append(*children, folder)
	a.rebuildFeedIndexLocked()
	a.saver.MarkDirty()
	return true
}

// RemoveFolder removes the named folder and everything inside it from the
// given container.
func (a *Account) RemoveFolder(name string, parent *Folder) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	children := a.containerLocked(parent)
	if children == nil || !containsFolder(*children, name) {
		return false
	}

	*children = lo.Reject(*children, func(e Entity, _ int) bool {
		fo, ok := e.(*Folder)
		return ok && fo.Name == name
	})
	a.rebuildFeedIndexLocked()
	a.saver.MarkDirty()
	return true
}

// EnsureFolder finds the top-level folder with the given name, creating
// and inserting it when absent. Returns nil only for an empty name.
func (a *Account) EnsureFolder(name string) *Folder {
	if name == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing := a.topLevelFolderLocked(name); existing != nil {
		return existing
	}

	folder := &Folder{Name: name}
	a.children = append(a.children, folder)
	a.saver.MarkDirty()
	return folder
}

// RefreshInProgress reports whether the delegate has outstanding refresh
// operations.
func (a *Account) RefreshInProgress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshInProgress
}

// RefreshAll hands a refresh cycle off to the delegate and returns
// immediately. A call while a cycle is already in flight is rejected as a
// no-op. The starting flag covers the window between the check and the
// delegate registering its first task, so two concurrent callers cannot
// both start a cycle.
func (a *Account) RefreshAll(ctx context.Context) {
	a.mu.Lock()
	if a.refreshInProgress || a.refreshStarting {
		a.mu.Unlock()
		log.WithFields(log.Fields{
			"account": a.ID,
		}).Debug("Refresh already in progress, ignoring request")
		return
	}
	a.refreshStarting = true
	a.mu.Unlock()

	refreshCycles.Inc()
	a.delegate.RefreshAll(ctx, a)

	a.mu.Lock()
	a.refreshStarting = false
	a.mu.Unlock()
}

// MarkArticles forwards a status change for a set of articles belonging to
// this account to the external article store.
func (a *Account) MarkArticles(ctx context.Context, articleIDs []string, statusKey string, flag bool) error {
	if a.articles == nil {
		return ErrNoArticleStore
	}
	return a.articles.MarkArticles(ctx, a.ID, articleIDs, statusKey, flag)
}

// progressDidChange is the delegate's report path back onto the account.
// Every change emits a progress-changed event; a change of the aggregate
// refreshing state additionally emits began/finished, before the
// progress-changed event for that notification.
func (a *Account) progressDidChange(snap ProgressSnapshot) {
	a.mu.Lock()
	refreshing := snap.Refreshing()
	changed := refreshing != a.refreshInProgress
	a.refreshInProgress = refreshing
	a.mu.Unlock()

	if changed {
		evtType := EventRefreshDidFinish
		if refreshing {
			evtType = EventRefreshDidBegin
		}
		a.events.Broadcast(Event{Type: evtType, AccountID: a.ID, Progress: snap})
	}

	a.events.Broadcast(Event{Type: EventRefreshProgressChanged, AccountID: a.ID, Progress: snap})
}

// writeSettings snapshots the tree under the account lock and writes it.
func (a *Account) writeSettings() error {
	a.mu.Lock()
	sf := &settingsFile{
		Type:     string(a.Type),
		Name:     a.Name,
		Username: a.Username,
		Children: recordsFromEntities(a.children),
	}
	a.mu.Unlock()

	return writeSettingsFile(settingsPath(a.dataFolder), sf)
}

// containerLocked resolves the child slice for a container: the top level
// for nil, otherwise the folder's children if the folder is reachable from
// this account's tree.
func (a *Account) containerLocked(folder *Folder) *[]Entity {
	if folder == nil {
		return &a.children
	}
	if a.folderInTreeLocked(a.children, folder) {
		return &folder.Children
	}
	return nil
}

func (a *Account) folderInTreeLocked(children []Entity, target *Folder) bool {
	for _, e := range children {
		fo, ok := e.(*Folder)
		if !ok {
			continue
		}
		if fo == target || a.folderInTreeLocked(fo.Children, target) {
			return true
		}
	}
	return false
}

func (a *Account) topLevelFolderLocked(name string) *Folder {
	for _, e := range a.children {
		if fo, ok := e.(*Folder); ok && fo.Name == name {
			return fo
		}
	}
	return nil
}

// rebuildFeedIndexLocked recomputes the feedID index from the tree. The
// index is a pure function of the tree and is rebuilt wholesale after
// every structural mutation.
func (a *Account) rebuildFeedIndexLocked() {
	index := make(map[string]*Feed)
	var walk func(children []Entity)
	walk = func(children []Entity) {
		for _, e := range children {
			switch e := e.(type) {
			case *Feed:
				if _, ok := index[e.FeedID]; !ok {
					index[e.FeedID] = e
				}
			case *Folder:
				walk(e.Children)
			}
		}
	}
	walk(a.children)
	a.feedIndex = index
}
