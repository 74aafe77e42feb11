// Package queue implements the bounded-nothing, multi-producer/single-
// consumer event queue that interceptor bodies push raw access events into.
package queue

import (
	"sync"
	"time"

	"github.com/peterpjaspers/accessmonitor/internal/record"
)

// RawEvent is produced by an interceptor and consumed by the collector.
type RawEvent struct {
	Path    string // as the interceptor read it (path arguments are not made absolute or canonicalized); empty means "drop"
	Mode    record.Mode
	Time    time.Time
	Success bool
}

// item is one queue slot: a RawEvent, or (stop set) the sentinel Stop pushes
// once to signal the drainer to finish draining and exit. The sentinel is
// not a RawEvent the collector ever records.
type item struct {
	event RawEvent
	stop  bool
}

// Queue is an unbounded FIFO. Push never blocks — back-pressure would
// change the timing of the program being observed, which would falsify the
// very access pattern the monitor exists to record. Pop blocks until an
// item (or the stop sentinel) is available.
//
// Events pushed by a single producer thread are popped in the order they
// were pushed (FIFO per producer); there is no ordering guarantee between
// events pushed concurrently by different producer threads, which is fine
// because record.Fold is order-insensitive.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []item
	stopped bool // the sentinel has been pushed; no further pushes are accepted
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an event. It never blocks. Pushing after Stop has been
// called is a no-op — the queue guarantees events racing the sentinel are
// either fully ordered before it or silently dropped, never reordered after.
func (q *Queue) Push(e RawEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.items = append(q.items, item{event: e})
	q.cond.Signal()
}

// Stop pushes the distinguished stop sentinel. After Stop, Pop drains any
// events pushed before it and then reports the sentinel via its second
// return value.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.items = append(q.items, item{stop: true})
	q.cond.Signal()
}

// Pop blocks until an event is available, returning (event, true) for a
// regular event or (zero, false) once the stop sentinel is reached, and on
// every call after that — every event pushed before Stop is guaranteed to
// be popped first.
func (q *Queue) Pop() (RawEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	it := q.items[0]
	if it.stop {
		// The sentinel stays at the head, so later Pops report it too.
		return RawEvent{}, false
	}
	q.items = q.items[1:]
	return it.event, true
}

// Len reports the number of events currently queued (not counting a
// pending sentinel), for debug-aspect logging of queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if q.stopped && n > 0 {
		n-- // the sentinel itself isn't an event
	}
	return n
}
