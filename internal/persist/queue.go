package persist

import (
	"context"
	"sync"

	"github.com/atmx/cachedb/internal/metrics"
)

// DefaultCapacity is the number of commands the queue holds before
// enqueue blocks.
const DefaultCapacity = 1000

// queue is the bounded FIFO between producers and the worker. It stays
// open while at least one producer reference is held; releasing the last
// reference closes the channel, which is the worker's signal to drain and
// stop.
type queue struct {
	ch   chan Command
	done <-chan struct{} // closed when the worker exits

	mu     sync.RWMutex
	refs   int
	closed bool
}

func newQueue(capacity int, done <-chan struct{}) *queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &queue{
		ch:   make(chan Command, capacity),
		done: done,
		refs: 1,
	}
}

// send blocks while the queue is full. The read lock is held across the
// blocking send so release cannot close the channel underneath it.
func (q *queue) send(ctx context.Context, cmd Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return &SendError{Kind: cmd.Kind(), Key: cmd.Key()}
	}
	select {
	case <-q.done:
		return &SendError{Kind: cmd.Kind(), Key: cmd.Key()}
	default:
	}

	select {
	case q.ch <- cmd:
		metrics.CommandsEnqueued.WithLabelValues(cmd.Kind()).Inc()
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	case <-q.done:
		return &SendError{Kind: cmd.Kind(), Key: cmd.Key()}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire adds a producer reference. It fails once the queue has closed.
func (q *queue) acquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.refs++
	return true
}

// release drops a producer reference and closes the channel when none
// remain.
func (q *queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.refs--
	if q.refs == 0 {
		q.closed = true
		close(q.ch)
	}
}

// isClosed reports whether the last producer reference was released.
func (q *queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
