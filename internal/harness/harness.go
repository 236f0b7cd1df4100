package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/simctl/internal/action"
	"github.com/roach88/simctl/internal/backend"
	"github.com/roach88/simctl/internal/session"
	"github.com/roach88/simctl/internal/testutil"
)

// DefaultTimeout bounds a whole scenario run.
const DefaultTimeout = 10 * time.Second

// awaitPoll is how often await_task re-checks the task table.
const awaitPoll = 5 * time.Millisecond

// Options configures a run.
type Options struct {
	// Source answers send_table_data queries.
	Source backend.Queryable
	// Files answers send_table_names.
	Files backend.TableLister
	// Timeout bounds the run. Zero selects DefaultTimeout.
	Timeout time.Duration
	// Logger receives session and dispatcher logs. Nil discards them.
	Logger *slog.Logger
}

// Harness runs one scenario against one session.
type Harness struct {
	session    *session.Session
	dispatcher *action.Dispatcher
	logger     *slog.Logger
	pending    []pendingUnit
}

type pendingUnit struct {
	step int
	id   string
	unit *action.Unit
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh session with sequential invocation ids.
// Step failures and assertion failures are reported in the result; the
// returned error is reserved for setup failures and timeouts.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := opts.Logger
	if logger == nil {
		logger = testutil.DiscardLogger()
	}

	d, err := action.NewDefault(
		action.WithIDGenerator(testutil.NewSequenceGenerator("inv")),
		action.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	s := session.New(session.Config{
		Source: opts.Source,
		Files:  opts.Files,
		Logger: logger,
	})
	s.Start(ctx)
	defer s.Close()

	h := &Harness{session: s, dispatcher: d, logger: logger}
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	if err := h.settle(ctx, result); err != nil {
		return nil, err
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep invokes one action. Unexpected step outcomes are recorded
// in result; only a dead context aborts the run.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	if step.Await != "" {
		return h.awaitStep(ctx, i, step.Await, result)
	}

	if step.AwaitTask != "" {
		if err := h.awaitTask(ctx, step.AwaitTask); err != nil {
			return fmt.Errorf("steps[%d]: await task %q: %w", i, step.AwaitTask, err)
		}
	}

	args, err := encodeArgs(step.Args)
	if err != nil {
		return fmt.Errorf("steps[%d]: %w", i, err)
	}

	unit, err := h.dispatcher.Invoke(ctx, h.session, step.Invoke, args)
	if err == nil {
		if step.Async {
			h.pending = append(h.pending, pendingUnit{step: i, id: step.ID, unit: unit})
			return nil
		}
		_, err = unit.Wait(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("steps[%d]: %s: %w", i, step.Invoke, ctx.Err())
		}
	}

	checkStepError(i, step, err, result)
	return nil
}

// checkStepError compares a step's error against its expect_error.
func checkStepError(i int, step Step, err error, result *Result) {
	switch {
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Invoke, err))
	case step.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got none", i, step.Invoke, step.ExpectError))
	case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %q", i, step.Invoke, step.ExpectError, err.Error()))
	}
}

// awaitStep waits for the async step named id and stops tracking it.
// Unlike settle it releases nothing, so the unit must finish on its own.
func (h *Harness) awaitStep(ctx context.Context, i int, id string, result *Result) error {
	for k, p := range h.pending {
		if p.id != id {
			continue
		}
		h.pending = append(h.pending[:k], h.pending[k+1:]...)

		_, err := p.unit.Wait(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("steps[%d]: await %q: %w", i, id, ctx.Err())
		}
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s (async): unexpected error: %v", p.step, p.unit.Name(), err))
		}
		return nil
	}
	return fmt.Errorf("steps[%d]: await %q: no pending async step", i, id)
}

// awaitTask polls the task table until name is live.
func (h *Harness) awaitTask(ctx context.Context, name string) error {
	ticker := time.NewTicker(awaitPoll)
	defer ticker.Stop()

	for {
		var live bool
		if err := h.session.Loop.Call(ctx, func() {
			_, live = h.session.Tasks.Get(name)
		}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if live {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// settle releases parked tasks and waits for every async step.
func (h *Harness) settle(ctx context.Context, result *Result) error {
	if err := h.session.ReleaseTasks(ctx); err != nil {
		return fmt.Errorf("release tasks: %w", err)
	}

	for _, p := range h.pending {
		_, err := p.unit.Wait(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("steps[%d]: async %s: %w", p.step, p.unit.Name(), ctx.Err())
		}
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s (async): unexpected error: %v", p.step, p.unit.Name(), err))
		}
	}
	h.pending = nil
	return nil
}

// collect copies the queued envelopes and the final registry into result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	for {
		msg, ok := h.session.Queue.TryGet()
		if !ok {
			break
		}
		result.Transcript = append(result.Transcript, string(msg))
	}

	var registry []string
	if err := h.session.Loop.Call(ctx, func() {
		registry = h.session.Memory.Registry.Sorted()
	}); err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	result.Registry = registry
	return nil
}

// encodeArgs turns YAML-decoded step args into the JSON object actions take.
func encodeArgs(args map[string]any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return data, nil
}
