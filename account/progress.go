package account

import "sync"

// ProgressSnapshot is an immutable view of a RefreshProgress at one point
// in time.
type ProgressSnapshot struct {
	NumberOfTasks   int `json:"numberOfTasks"`
	NumberRemaining int `json:"numberRemaining"`
}

// Refreshing reports whether any tasks are still outstanding.
func (s ProgressSnapshot) Refreshing() bool {
	return s.NumberRemaining > 0
}

// RefreshProgress counts outstanding refresh operations for one account.
// Delegates add tasks as they start work and complete them as work ends,
// successfully or not. Every change is reported through the onChange hook
// with a snapshot taken under the lock.
type RefreshProgress struct {
	mu              sync.Mutex
	numberOfTasks   int
	numberRemaining int
	onChange        func(ProgressSnapshot)
}

func NewRefreshProgress() *RefreshProgress {
	return &RefreshProgress{}
}

// SetOnChange registers the change hook. The hook runs with the progress
// lock held so snapshots are delivered in the order they are computed; it
// must not call back into the progress object.
func (p *RefreshProgress) SetOnChange(fn func(ProgressSnapshot)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// AddTasks registers n new outstanding operations.
func (p *RefreshProgress) AddTasks(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.numberOfTasks += n
	p.numberRemaining += n
	p.notifyLocked(p.snapshotLocked())
}

// CompleteTask marks one outstanding operation as finished. A delegate that
// fails an operation must still call CompleteTask so the account does not
// stay in the refreshing state.
func (p *RefreshProgress) CompleteTask() {
	p.CompleteTasks(1)
}

// CompleteTasks marks n outstanding operations as finished in one change
// notification. When the last task completes the totals are reset so the
// next refresh cycle starts from zero.
func (p *RefreshProgress) CompleteTasks(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.numberRemaining -= n
	if p.numberRemaining < 0 {
		p.numberRemaining = 0
	}
	snap := p.snapshotLocked()
	if p.numberRemaining == 0 {
		p.numberOfTasks = 0
	}
	p.notifyLocked(snap)
}

// Clear drops all outstanding tasks. Reported as a change only when tasks
// were actually outstanding.
func (p *RefreshProgress) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	hadRemaining := p.numberRemaining > 0
	p.numberOfTasks = 0
	p.numberRemaining = 0
	if hadRemaining {
		p.notifyLocked(p.snapshotLocked())
	}
}

func (p *RefreshProgress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{
		NumberOfTasks:   p.numberOfTasks,
		NumberRemaining: p.numberRemaining,
	}
}

func (p *RefreshProgress) snapshotLocked() ProgressSnapshot {
	return ProgressSnapshot{
		NumberOfTasks:   p.numberOfTasks,
		NumberRemaining: p.numberRemaining,
	}
}

func (p *RefreshProgress) notifyLocked(snap ProgressSnapshot) {
	if p.onChange != nil {
		p.onChange(snap)
	}
}
