package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned when work is submitted to a loop that is no longer running.
var ErrStopped = errors.New("loop stopped")

// Loop is the single-writer event loop.
//
// Thread-safety model:
//   - Submit(), Call(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Call() must NOT be called from inside a closure running on the loop
type Loop struct {
	queue    *jobQueue
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// New creates a Loop. Nothing runs until Run is called.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:   newJobQueue(),
		stopped: make(chan struct{}),
		logger:  logger,
	}
}

// Run executes submitted closures until the context is cancelled or Stop is
// called. After Stop, jobs already queued are drained before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")
	defer l.markStopped()

	for {
		if j, ok := l.queue.TryDequeue(); ok {
			j.fn()
			if j.done != nil {
				close(j.done)
			}
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// A stale signal can arrive after its job was already taken,
			// so only a closed queue ends the loop.
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Submit schedules fn on the loop without waiting for it.
// Returns false if the loop has been stopped.
func (l *Loop) Submit(fn func()) bool {
	return l.queue.Enqueue(job{fn: fn})
}

// Call runs fn on the loop and waits until it has returned.
//
// If ctx ends first Call returns ctx.Err(); fn may still run later, so
// callers must not rely on fn's effects in that case.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.queue.Enqueue(job{fn: fn, done: done}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		// Run may have finished fn just before returning
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop closes the loop to new work. Run returns once the backlog is drained.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Done is closed after Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

func (l *Loop) markStopped() {
	l.stopOnce.Do(func() { close(l.stopped) })
}
