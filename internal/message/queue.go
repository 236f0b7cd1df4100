package message

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Put after Close, and by Get once a closed
// queue has been drained.
var ErrQueueClosed = errors.New("send queue closed")

// Queue is the per-session send queue: an unbounded FIFO of encoded envelopes.
//
// Put never blocks on capacity; backpressure is the transport's concern.
// Thread-safe: any number of producers, typically one consumer.
type Queue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	signal chan struct{} // buffered, size 1
}

// NewQueue creates an empty send queue.
func NewQueue() *Queue {
	return &Queue{
		items:  make([][]byte, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Put appends an encoded envelope.
func (q *Queue) Put(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, msg)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// TryGet removes the front message without blocking.
func (q *Queue) TryGet() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return msg, true
}

// Get blocks until a message is available, the queue is closed and empty,
// or ctx is done.
func (q *Queue) Get(ctx context.Context) ([]byte, error) {
	for {
		if msg, ok := q.TryGet(); ok {
			return msg, nil
		}

		q.mu.Lock()
		drained := q.closed && len(q.items) == 0
		q.mu.Unlock()
		if drained {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting messages. Queued messages remain readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
