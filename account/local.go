package account

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Refresher fetches and stores the current content of a single feed. The
// local delegate calls it once per subscribed feed during a refresh cycle.
type Refresher interface {
	RefreshFeed(ctx context.Context, f *Feed) error
}

// LocalDelegate is the on-device backend: no remote sync service and no
// sub-folder support. Without a Refresher a refresh cycle is a no-op.
type LocalDelegate struct {
	progress  *RefreshProgress
	refresher Refresher
}

func NewLocalDelegate(refresher Refresher) *LocalDelegate {
	return &LocalDelegate{
		progress:  NewRefreshProgress(),
		refresher: refresher,
	}
}

func (d *LocalDelegate) SupportsSubFolders() bool {
	return false
}

func (d *LocalDelegate) Progress() *RefreshProgress {
	return d.progress
}

func (d *LocalDelegate) RefreshAll(ctx context.Context, a *Account) {
	if d.refresher == nil {
		return
	}

	feeds := a.Feeds()
	if len(feeds) == 0 {
		return
	}

	d.progress.AddTasks(len(feeds))

	for _, f := range feeds {
		go func(f *Feed) {
			defer d.progress.CompleteTask()

			if err := d.refresher.RefreshFeed(ctx, f); err != nil {
				log.WithFields(log.Fields{
					"account": a.ID,
					"feed":    f.URL,
					"error":   err,
				}).Error("Error refreshing feed")
			}
		}(f)
	}
}
