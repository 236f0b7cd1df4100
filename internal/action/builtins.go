package action

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roach88/simctl/internal/backend"
	"github.com/roach88/simctl/internal/executor"
	"github.com/roach88/simctl/internal/message"
	"github.com/roach88/simctl/internal/session"
	"github.com/roach88/simctl/internal/tables"
)

// Event names emitted by the built-in actions.
const (
	EventEcho       = "echo"
	EventRegistry   = "registry"
	EventTableNames = "table_names"
	EventTableData  = "table_data"
)

// RegisterBuiltins adds the standard action set to d.
func RegisterBuiltins(d *Dispatcher) error {
	builtins := []struct {
		name string
		step Step
	}{
		{"echo", Echo},
		{"pause", Pause},
		{"unpause", Unpause},
		{"register_tables", RegisterTables},
		{"deregister_tables", DeregisterTables},
		{"send_registry_action", SendRegistryAction},
		{"send_table_names", SendTableNames},
		{"send_table_data", SendTableData},
		{"sleep", Sleep},
	}

	for _, b := range builtins {
		if err := d.RegisterStep(b.name, b.step); err != nil {
			return err
		}
	}
	return nil
}

// decodeArgs unmarshals an argument object; empty args decode as {}.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

type echoArgs struct {
	S string `json:"s"`
}

// Echo sends s straight back as an "echo" event.
func Echo(ctx context.Context, s *session.Session, args json.RawMessage) (Rest, error) {
	var a echoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	s.Logger.Info("echo", "s", a.S)
	return nil, message.Send(ctx, s.Queue, EventEcho, echoArgs{S: a.S}, a.S)
}

// Pause parks until Unpause cancels it.
//
// The task is stored under session.PauseTask before any later action
// starts. Being unpaused is the normal way out and returns nil; only the
// end of ctx surfaces as an error.
func Pause(ctx context.Context, s *session.Session, _ json.RawMessage) (Rest, error) {
	task := session.NewTask(ctx, session.PauseTask)
	s.Tasks.Put(task)

	return func(ctx context.Context) (any, error) {
		<-task.Done()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.Logger.Debug("pause released", "cause", task.Cause())
		return nil, nil
	}, nil
}

// Unpause cancels and removes the pause task. Without one it does nothing.
func Unpause(_ context.Context, s *session.Session, _ json.RawMessage) (Rest, error) {
	if task, ok := s.Tasks.Pop(session.PauseTask); ok {
		task.Cancel(session.ErrUnpaused)
	}
	return nil, nil
}

type tablesArgs struct {
	Tables json.RawMessage `json:"tables"`
}

// decodeTables normalizes the tables argument. Type errors surface here,
// before any registry access.
func decodeTables(args json.RawMessage) (tables.Set, error) {
	var a tablesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	in, err := tables.Decode(a.Tables)
	if err != nil {
		return nil, err
	}
	return tables.EnsureTables(in), nil
}

// updateRegistry replaces the registry with update(current) and broadcasts
// the result.
//
// CRITICAL: runs on the loop. Read, compute and replace must not be split
// across loop jobs or another action's update could slip in between.
func updateRegistry(ctx context.Context, s *session.Session, update func(tables.Set) tables.Set) error {
	s.Memory.Registry = update(s.Memory.Registry)
	return SendRegistry(ctx, s)
}

// RegisterTables adds table names to the in-memory registry and broadcasts it.
// The tables argument is a single name or an array of names.
func RegisterTables(ctx context.Context, s *session.Session, args json.RawMessage) (Rest, error) {
	add, err := decodeTables(args)
	if err != nil {
		return nil, err
	}
	return nil, updateRegistry(ctx, s, func(cur tables.Set) tables.Set { return cur.Union(add) })
}

// DeregisterTables removes table names from the in-memory registry and broadcasts it.
func DeregisterTables(ctx context.Context, s *session.Session, args json.RawMessage) (Rest, error) {
	remove, err := decodeTables(args)
	if err != nil {
		return nil, err
	}
	return nil, updateRegistry(ctx, s, func(cur tables.Set) tables.Set { return cur.Difference(remove) })
}

// SendRegistry sends the current registry, sorted, as a "registry" event.
// It reads loop-owned state and must run on the loop.
func SendRegistry(ctx context.Context, s *session.Session) error {
	return message.Send(ctx, s.Queue, EventRegistry, nil, s.Memory.Registry.Sorted())
}

// SendRegistryAction is the dispatchable form of SendRegistry.
func SendRegistryAction(ctx context.Context, s *session.Session, _ json.RawMessage) (Rest, error) {
	return nil, SendRegistry(ctx, s)
}

// SendTableNames sends the read-only backend's table names, sorted.
// Listing is I/O, so it happens off the loop.
func SendTableNames(_ context.Context, s *session.Session, _ json.RawMessage) (Rest, error) {
	files, queue := s.Files, s.Queue

	return func(ctx context.Context) (any, error) {
		names := []string{}
		if files != nil {
			listed, err := files.Tables(ctx)
			if err != nil {
				return nil, err
			}
			names = append(names, listed...)
		}
		sort.Strings(names)
		return nil, message.Send(ctx, queue, EventTableNames, nil, names)
	}, nil
}

// tableDataArgs doubles as the params echoed back with table_data, so the
// field order is the wire order.
type tableDataArgs struct {
	Table  string         `json:"table"`
	Conds  []backend.Cond `json:"conds"`
	Orient string         `json:"orient"`
}

// SendTableData renders a table on a worker and sends it as "table_data".
//
// The query is submitted from the loop; the wait for it is not. The request
// parameters come back as params so callers can correlate replies. A missing
// table yields the string "<table> is not available." as data.
func SendTableData(ctx context.Context, s *session.Session, args json.RawMessage) (Rest, error) {
	var a tableDataArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Orient == "" {
		a.Orient = string(backend.DefaultOrient)
	}

	// The worker gets the backend handle and request values only
	mem := s.Memory
	table, conds, orient := a.Table, a.Conds, backend.Orient(a.Orient)

	future := executor.Submit(s.Executor, func() (json.RawMessage, error) {
		return backend.TableJSON(ctx, mem, table, conds, orient)
	})
	queue := s.Queue

	return func(ctx context.Context) (any, error) {
		data, err := future.Await(ctx)
		if err != nil {
			return nil, err
		}
		return nil, message.Send(ctx, queue, EventTableData, a, data)
	}, nil
}

type sleepArgs struct {
	N float64 `json:"n"`
}

// sleepDuration converts n seconds to a duration. It reports false when n
// is beyond what time.Duration can hold; such a sleep lasts until ctx ends.
func sleepDuration(n float64) (time.Duration, bool) {
	ns := n * float64(time.Second)
	if ns >= math.MaxInt64 {
		return 0, false
	}
	return time.Duration(ns), true
}

// Sleep waits n seconds without holding up other actions.
func Sleep(_ context.Context, _ *session.Session, args json.RawMessage) (Rest, error) {
	var a sleepArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	return func(ctx context.Context) (any, error) {
		d, bounded := sleepDuration(a.N)
		if !bounded {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}
