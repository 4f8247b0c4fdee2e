package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push after Close, and by Pop once a closed
// queue is empty.
var ErrQueueClosed = errors.New("publish queue closed")

// Queue is a bounded FIFO between the ingest loop and the publish worker.
// Push never blocks: when the queue is full the oldest message is evicted.
// Pop is meant for a single consumer.
type Queue struct {
	mu      sync.Mutex
	buf     []Message
	head    int
	count   int
	closed  bool
	dropped uint64

	ready chan struct{}
	done  chan struct{}
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		buf:   make([]Message, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends msg. It reports whether an older message was evicted to make
// room.
func (q *Queue) Push(msg Message) (evicted bool, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrQueueClosed
	}

	if q.count == len(q.buf) {
		q.buf[q.head] = Message{}
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
		evicted = true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = msg
	q.count++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted, nil
}

// Pop removes the oldest message, waiting until one is available, the queue
// is closed and empty, or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if q.count > 0 {
			msg := q.popLocked()
			q.mu.Unlock()
			return msg, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Message{}, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (q *Queue) popLocked() Message {
	msg := q.buf[q.head]
	q.buf[q.head] = Message{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return msg
}

// Close stops new pushes. Messages already queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Flush discards everything still queued and returns how many messages were
// removed.
func (q *Queue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.count
	for q.count > 0 {
		q.popLocked()
	}
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) Cap() int {
	return len(q.buf)
}

// Dropped returns the number of messages evicted by overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
