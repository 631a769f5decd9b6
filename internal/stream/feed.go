package stream

import (
	"sync"
	"time"
)

// feed capacity guard; the retention window is the real bound.
const feedMaxLen = 5000

// Feed is the shared collection of recent updates produced by a single
// source (live stream listener or simulated tick generator) and read by any
// number of UpdateQueue consumers. Consumption never removes an update from
// the feed, only from the consumer's local view.
//
// A Feed is constructed once at startup and passed by handle into every
// consumer; it is safe for concurrent use.
type Feed struct {
	mu        sync.RWMutex
	updates   []Update
	retention time.Duration
}

// NewFeed creates a feed that retains updates for the given duration.
func NewFeed(retention time.Duration) *Feed {
	if retention <= 0 {
		retention = RetentionWindow
	}
	return &Feed{retention: retention}
}

// Publish appends an update and prunes entries that fell out of the
// retention window.
func (f *Feed) Publish(u Update) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, u)

	oldest := u.Moment.Add(-f.retention)
	keep := f.updates[:0]
	for _, old := range f.updates {
		if !old.Moment.Before(oldest) {
			keep = append(keep, old)
		}
	}
	f.updates = keep

	if len(f.updates) > feedMaxLen {
		f.updates = f.updates[len(f.updates)-feedMaxLen:]
	}
}

// Snapshot returns a copy of the feed's current contents in insertion order.
func (f *Feed) Snapshot() []Update {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Update, len(f.updates))
	copy(out, f.updates)
	return out
}

// Len returns the number of retained updates.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.updates)
}
