package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/simctl/internal/backend"
	"github.com/roach88/simctl/internal/executor"
	"github.com/roach88/simctl/internal/loop"
	"github.com/roach88/simctl/internal/message"
)

// Session is the state shared by all actions of one connection.
type Session struct {
	Queue    *message.Queue
	Tasks    *TaskTable
	Memory   *backend.Memory
	Files    backend.TableLister
	Loop     *loop.Loop
	Executor *executor.Pool
	Logger   *slog.Logger

	started atomic.Bool
	runErr  chan error
}

// Config describes the collaborators of a new session.
type Config struct {
	// Source answers data queries for the in-memory backend.
	Source backend.Queryable
	// Files is the read-only backend listing tables on disk.
	Files backend.TableLister
	// Workers bounds the executor. Zero selects executor.DefaultWorkers.
	Workers int
	Logger  *slog.Logger
}

// New creates a session. Call Start before dispatching actions.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Queue:    message.NewQueue(),
		Tasks:    NewTaskTable(),
		Memory:   backend.NewMemory(cfg.Source),
		Files:    cfg.Files,
		Loop:     loop.New(logger),
		Executor: executor.New(cfg.Workers, logger),
		Logger:   logger,
		runErr:   make(chan error, 1),
	}
}

// Start runs the session loop on a new goroutine.
// Calling Start more than once has no effect.
func (s *Session) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() { s.runErr <- s.Loop.Run(ctx) }()
}

// ReleaseTasks cancels live tasks and makes tasks registered later finish
// at once, so every in-flight action can be awaited.
func (s *Session) ReleaseTasks(ctx context.Context) error {
	return s.Loop.Call(ctx, func() { s.Tasks.Close(ErrSessionClosed) })
}

// Close cancels live tasks, drains the loop and the executor, then closes
// the send queue. Queued envelopes stay readable.
func (s *Session) Close() error {
	if !s.started.Load() {
		s.Loop.Stop()
		s.Executor.Close()
		s.Queue.Close()
		return nil
	}

	// Best effort: the loop may already have stopped with its context
	_ = s.Loop.Call(context.Background(), func() {
		s.Tasks.Close(ErrSessionClosed)
	})
	s.Loop.Stop()
	err := <-s.runErr

	s.Executor.Close()
	s.Queue.Close()

	s.Logger.Debug("session closed", "queued", s.Queue.Len())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
