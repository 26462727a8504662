package account

import "github.com/samber/lo"

// Folder is an ordered container of feeds and, when the account's backend
// supports it, nested folders.
type Folder struct {
	Name     string
	Children []Entity
}

func (fo *Folder) entity() {}

// Feeds returns the feeds directly inside the folder, in order.
func (fo *Folder) Feeds() []*Feed {
	return lo.FilterMap(fo.Children, func(e Entity, _ int) (*Feed, bool) {
		f, ok := e.(*Feed)
		return f, ok
	})
}

// Folders returns the sub-folders directly inside the folder, in order.
func (fo *Folder) Folders() []*Folder {
	return lo.FilterMap(fo.Children, func(e Entity, _ int) (*Folder, bool) {
		sub, ok := e.(*Folder)
		return sub, ok
	})
}

func containsFeed(children []Entity, feedID string) bool {
	return lo.ContainsBy(children, func(e Entity) bool {
		f, ok := e.(*Feed)
		return ok && f.FeedID == feedID
	})
}

func containsFolder(children []Entity, name string) bool {
	return lo.ContainsBy(children, func(e Entity) bool {
		fo, ok := e.(*Folder)
		return ok && fo.Name == name
	})
}
