package crawler

import (
	"sync"

	"github.com/alvmarrod/graph-crawler/internal/storage"
)

// QueueState describes where a Queue is in its lifecycle
type QueueState int

const (
	// StateOpen accepts and yields work.
	StateOpen QueueState = iota
	// StateDraining has the terminal signal raised but still yields queued work.
	StateDraining
	// StateClosed has the terminal signal raised and nothing left to yield.
	StateClosed
)

func (s QueueState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Queue is the shared FIFO frontier of the dynamic strategy.
//
// The queue knows how many workers take from it. When every one of them is
// blocked in Take with nothing queued, none of them can ever Offer again, so
// the queue raises the terminal signal itself.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []storage.Node
	workers   int
	idle      int
	done      bool
	exhausted bool
}

// NewQueue creates a queue drained by the given number of workers.
// workers <= 0 disables exhaustion detection.
func NewQueue(workers int) *Queue {
	q := &Queue{
		items:   make([]storage.Node, 0),
		workers: workers,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Offer appends a node to the tail and wakes one waiting worker
func (q *Queue) Offer(n storage.Node) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, n)
	q.cond.Signal()
}

// Take removes and returns the head of the queue.
// It blocks while the queue is empty and open, and returns (empty, false)
// once the terminal signal is raised and nothing is left.
func (q *Queue) Take() (storage.Node, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			n := q.items[0]
			q.items[0] = storage.Node{}
			q.items = q.items[1:]
			return n, true
		}

		if q.done {
			return storage.Node{}, false
		}

		q.idle++
		if q.workers > 0 && q.idle >= q.workers {
			q.idle--
			q.done = true
			q.exhausted = true
			q.cond.Broadcast()
			return storage.Node{}, false
		}

		q.cond.Wait()
		q.idle--
	}
}

// SignalDone raises the terminal signal and wakes every waiter.
// Calling it more than once has no further effect.
func (q *Queue) SignalDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.done {
		return
	}
	q.done = true
	q.cond.Broadcast()
}

// State reports the current lifecycle state
func (q *Queue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case !q.done:
		return StateOpen
	case len(q.items) > 0:
		return StateDraining
	default:
		return StateClosed
	}
}

// Exhausted reports whether the queue closed itself because every worker
// ran out of work
func (q *Queue) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exhausted
}

// Size returns the current number of queued nodes
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
