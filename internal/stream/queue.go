package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/model/enum"
)

const (
	// RetentionWindow bounds staleness: a consumer that stalls longer than
	// this permanently loses the older updates. Bounded memory is favored
	// over completeness.
	RetentionWindow = 8 * time.Second

	// seenLimit bounds the re-delivery rejection history.
	seenLimit = 999

	// pendingHighWater signals a consumer falling behind its feed.
	pendingHighWater = 3000

	// housekeepEvery spaces out seen-set trimming and backlog checks.
	housekeepEvery = 32
)

// Queue merges a shared feed into one consumer's time-windowed,
// priority-ordered, deduplicated sequence of updates. Each (strategy,
// account) pair owns exactly one Queue; a Queue is not safe for concurrent
// use and must stay on its owning goroutine.
type Queue struct {
	pending    []Update
	pendingIDs map[uuid.UUID]struct{}
	seen       []uuid.UUID
	seenIDs    map[uuid.UUID]struct{}
	calls      int
}

// NewQueue creates an empty update queue.
func NewQueue() *Queue {
	return &Queue{
		pendingIDs: make(map[uuid.UUID]struct{}),
		seenIDs:    make(map[uuid.UUID]struct{}),
	}
}

// NextUpdate returns the next unseen update from the shared feed, if there is
// one, and marks it as seen. Only feed entries no older than
// max(now-RetentionWindow, strategyStart) are considered, and entries for
// symbols outside the filter are skipped (updates without a symbol always
// pass). Order updates are delivered before account-info updates, which are
// delivered before candles; ties go to the earliest-queued entry.
func (q *Queue) NextUpdate(feed []Update, now, strategyStart time.Time, symbols []string) *Update {
	if len(q.pending) == 0 {
		q.pull(feed, now, strategyStart, symbols)
		if len(q.pending) == 0 {
			return nil
		}
	}

	q.calls++
	if q.calls%housekeepEvery == 0 {
		q.housekeep()
	}

	next := q.pending[q.pick()]
	q.remove(next.ID)
	q.markSeen(next.ID)
	return &next
}

func (q *Queue) pull(feed []Update, now, strategyStart time.Time, symbols []string) {
	cutoff := now.Add(-RetentionWindow)
	if strategyStart.After(cutoff) {
		cutoff = strategyStart
	}
	for _, u := range feed {
		if u.Symbol != "" && len(symbols) > 0 && !containsSymbol(symbols, u.Symbol) {
			continue
		}
		if _, ok := q.pendingIDs[u.ID]; ok {
			continue
		}
		if _, ok := q.seenIDs[u.ID]; ok {
			continue
		}
		if u.Moment.Before(cutoff) {
			continue
		}
		q.add(u)
	}
}

// add appends an update and pushes out pending entries that fell behind the
// retention window.
func (q *Queue) add(u Update) {
	q.pending = append(q.pending, u)
	q.pendingIDs[u.ID] = struct{}{}

	oldest := u.Moment.Add(-RetentionWindow)
	keep := q.pending[:0]
	for _, old := range q.pending {
		if old.Moment.Before(oldest) {
			delete(q.pendingIDs, old.ID)
			continue
		}
		keep = append(keep, old)
	}
	q.pending = keep
}

// pick returns the index of the highest-priority pending update: an order
// wins outright, account info beats candles, earliest insertion breaks ties.
func (q *Queue) pick() int {
	next := 0
	for i, u := range q.pending {
		if u.Type == enum.UpdateOrder {
			return i
		}
		if u.Type == enum.UpdateAcctInfo && q.pending[next].Type != enum.UpdateAcctInfo {
			next = i
		}
	}
	return next
}

func (q *Queue) remove(id uuid.UUID) {
	for i, u := range q.pending {
		if u.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	delete(q.pendingIDs, id)
}

func (q *Queue) markSeen(id uuid.UUID) {
	q.seen = append(q.seen, id)
	q.seenIDs[id] = struct{}{}
}

func (q *Queue) housekeep() {
	if len(q.pending) > pendingHighWater {
		logs.Warnf("suspiciously high number of stream updates queued (%d)", len(q.pending))
	}
	if len(q.seen) > seenLimit {
		drop := q.seen[:len(q.seen)-seenLimit]
		for _, id := range drop {
			delete(q.seenIDs, id)
		}
		q.seen = append(q.seen[:0], q.seen[len(q.seen)-seenLimit:]...)
	}
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
