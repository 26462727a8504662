package account

// Entity is a node in the subscription tree: either a *Feed or a *Folder.
type Entity interface {
	entity()
}

// Feed is a single subscribed source. FeedID is derived from the
// subscription URL when the feed is created and never changes.
type Feed struct {
	FeedID     string
	URL        string
	Name       string
	EditedName string
	AccountID  string
}

func (f *Feed) entity() {}

// NameForDisplay returns the user-edited name when one is set.
func (f *Feed) NameForDisplay() string {
	if f.EditedName != "" {
		return f.EditedName
	}
	return f.Name
}
