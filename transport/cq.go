package transport

import (
	"context"
	"sync"
)

// completionQueue is an unbounded FIFO of completions with a blocking poll.
type completionQueue struct {
	mu     sync.Mutex
	items  []Completion
	notify chan struct{}
	done   chan struct{}
	closed bool
}

func newCompletionQueue() *completionQueue {
	return &completionQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *completionQueue) push(c Completion) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *completionQueue) poll(ctx context.Context) (Completion, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			c := q.items[0]
			q.items[0] = Completion{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return c, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Completion{}, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
	}
}

func (q *completionQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}
