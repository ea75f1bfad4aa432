package engine

import "sync"

// work asks the host to run the head generation of a chain.
type work struct {
	ChainID string
}

// workQueue is a thread-safe FIFO queue of chains to dispatch.
//
// The queue is unbounded: CreateChain, Recover and finishing generations
// enqueue from many goroutines while the Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type workQueue struct {
	mu     sync.Mutex
	items  []work
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items:  make([]work, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an item to the back of the queue.
// Returns false if the queue is closed.
func (q *workQueue) Enqueue(w work) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, w)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (work{}, false) if the queue is empty.
func (q *workQueue) TryDequeue() (work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return work{}, false
	}

	w := q.items[0]
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return w, true
}

// Wait returns a channel that signals when items may be available.
// The channel is closed when the queue is closed.
func (q *workQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close signals that no more items will be enqueued.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal) // Wakes all waiters
}

// Closed reports whether Close has been called.
func (q *workQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
