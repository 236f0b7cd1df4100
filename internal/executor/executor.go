// Package executor runs blocking calls on a bounded set of worker goroutines.
//
// An action hands a function to Pool.Submit and awaits the returned Future
// from its own goroutine, so neither the loop nor other actions wait on the
// blocking call. Submitted functions receive only the values they close over
// and must not touch loop-owned session state.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker bound used when none is configured.
const DefaultWorkers = 4

// ErrClosed is returned by futures submitted after Close.
var ErrClosed = errors.New("executor closed")

// Pool is a bounded worker pool.
type Pool struct {
	mu      sync.Mutex
	group   errgroup.Group
	pending sync.WaitGroup // dispatchers not yet handed to group
	closed  bool
	logger  *slog.Logger
}

// New creates a pool running at most workers functions at once.
// workers <= 0 selects DefaultWorkers.
func New(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{logger: logger}
	p.group.SetLimit(workers)
	return p
}

// Future is the pending result of a submitted call.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call has finished or ctx is done.
// Abandoning a future does not stop the call.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit schedules fn on the pool and returns immediately.
//
// When every worker is busy the call waits in a dispatching goroutine, so
// Submit itself never blocks.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		f.err = ErrClosed
		close(f.done)
		return f
	}
	// Counted under the lock so Close cannot miss it
	p.pending.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.pending.Done()
		// Blocks while the pool is at its limit
		p.group.Go(func() error {
			defer close(f.done)
			f.value, f.err = fn()
			return nil
		})
	}()
	return f
}

// Close stops accepting work and waits for running calls to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Debug("executor draining")
	p.pending.Wait()
	_ = p.group.Wait()
}
