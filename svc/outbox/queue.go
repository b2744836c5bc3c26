package outbox

import "sync"

// queue is an unbounded FIFO drained by a single worker. push never blocks.
type queue struct {
	mu     sync.Mutex
	items  []job
	ready  chan struct{}
	closed bool
}

func newQueue(capacity int) *queue {
	return &queue{items: make([]job, 0, capacity), ready: make(chan struct{}, 1)}
}

// push appends j and reports the queue length after the append. It returns
// false once the queue is closed.
func (q *queue) push(j job) (int, bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, false
	}
	q.items = append(q.items, j)
	n := len(q.items)
	q.mu.Unlock()
	q.signal()
	return n, true
}

// pop blocks until a job is available. It returns false when the queue is
// closed and drained.
func (q *queue) pop() (job, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			j := q.items[0]
			q.items[0] = job{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return j, true
		}
		if q.closed {
			q.mu.Unlock()
			return job{}, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
