package session

import (
	"context"
	"errors"
)

// PauseTask is the task-table key used by pause and unpause.
const PauseTask = "pause"

var (
	// ErrUnpaused is the cancellation cause recorded by unpause.
	ErrUnpaused = errors.New("unpaused")

	// ErrSessionClosed is the cancellation cause for tasks still live at Close.
	ErrSessionClosed = errors.New("session closed")
)

// Task is a cancellable unit registered under a name.
type Task struct {
	Name   string
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewTask derives a cancellable task from parent.
func NewTask(parent context.Context, name string) *Task {
	ctx, cancel := context.WithCancelCause(parent)
	return &Task{Name: name, ctx: ctx, cancel: cancel}
}

// Done is closed when the task is cancelled or its parent ends.
func (t *Task) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Cancel cancels the task with cause. Repeated calls are no-ops.
func (t *Task) Cancel(cause error) {
	t.cancel(cause)
}

// Cause reports why the task ended, or nil while it is live.
func (t *Task) Cause() error {
	return context.Cause(t.ctx)
}

// TaskTable maps names to live tasks.
//
// Loop-owned: not safe for concurrent use.
type TaskTable struct {
	tasks  map[string]*Task
	closed error
}

// NewTaskTable creates an empty table.
func NewTaskTable() *TaskTable {
	return &TaskTable{tasks: make(map[string]*Task)}
}

// Put stores t under its name.
//
// An existing entry is overwritten WITHOUT being cancelled; the previous
// task stays live until its parent context ends. After Close, t is
// cancelled with the close cause instead of being stored.
func (tt *TaskTable) Put(t *Task) {
	if tt.closed != nil {
		t.Cancel(tt.closed)
		return
	}
	tt.tasks[t.Name] = t
}

// Get returns the task stored under name.
func (tt *TaskTable) Get(name string) (*Task, bool) {
	t, ok := tt.tasks[name]
	return t, ok
}

// Pop removes and returns the task stored under name.
func (tt *TaskTable) Pop(name string) (*Task, bool) {
	t, ok := tt.tasks[name]
	if ok {
		delete(tt.tasks, name)
	}
	return t, ok
}

// Len returns the number of live entries.
func (tt *TaskTable) Len() int {
	return len(tt.tasks)
}

// CancelAll cancels and removes every entry.
func (tt *TaskTable) CancelAll(cause error) {
	for name, t := range tt.tasks {
		t.Cancel(cause)
		delete(tt.tasks, name)
	}
}

// Close cancels every entry and turns later Puts into immediate
// cancellation with the same cause.
func (tt *TaskTable) Close(cause error) {
	tt.CancelAll(cause)
	tt.closed = cause
}
