// Package dispatch ships artifacts to destinations in the background: one
// FIFO queue and one worker goroutine per active destination, with a
// completion barrier the run uses before declaring itself done.
package dispatch

import "sync"

// Item is one file offered to a destination.
type Item struct {
	// Path is the local file to transfer (normally inside the staging dir).
	Path string
	// Name is the display name used in logs and deliveries.
	Name string
	// Subdir places the file below the destination base ("" for the base).
	Subdir string
	// Target is the build target that produced the file, empty for run-level
	// files such as the manifest and reports.
	Target string
}

// Queue is an unbounded FIFO with a completion barrier. An item counts as
// processed once the consumer calls done for it, whatever the outcome.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []Item
	enqueued  uint64
	processed uint64
	closed    bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends it without blocking. It returns false once the queue is closed.
func (q *Queue) Enqueue(it Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, it)
	q.enqueued++
	q.cond.Broadcast()
	return true
}

// next blocks until an item is available. ok is false when the queue is
// closed and empty.
func (q *Queue) next() (it Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Item{}, false
	}
	it = q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return it, true
}

func (q *Queue) done() {
	q.mu.Lock()
	q.processed++
	q.mu.Unlock()
	q.cond.Broadcast()
}

// DrainAndWait blocks until every item enqueued before the call has been
// processed. It is a barrier, not a shutdown: enqueueing may continue and the
// barrier may be used again.
func (q *Queue) DrainAndWait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	want := q.enqueued
	for q.processed < want {
		q.cond.Wait()
	}
}

// Len is the number of items not yet handed to the consumer.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending is the number of enqueued items not yet processed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.enqueued - q.processed)
}

// Close stops accepting items. The consumer still drains what is queued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
