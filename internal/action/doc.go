// Package action dispatches named actions against a session.
//
// ARCHITECTURE:
//
// Dispatch Table:
// Actions are registered by name in a Dispatcher. There is no per-action
// wrapping; every invocation goes through one interceptor (Dispatcher.start)
// that logs the arguments on entry and the result on exit.
//
// Two-Part Actions:
// An action is a Step followed by an optional Rest. Invoke queues the Step
// on the session loop before it returns, so steps run in invocation order:
// a pause is stored before a following unpause looks for it, and a
// register is applied before a following deregister. The Rest is the
// waiting part (a parked pause, a timer, a worker future, a listing) and
// runs on its own goroutine. Plain Handlers are all Rest.
//
// Units of Work:
// Invoke returns a *Unit; callers await it with Unit.Wait. Several units
// may be in flight at once, and they interleave only inside their Rest.
//
// Session State:
// Loop-owned state (the task table, the table registry) is touched only
// by Steps or inside session.Loop.Call. A Step runs without interruption,
// which is what keeps read-compute-replace updates of the registry atomic.
//
// ERROR HANDLING:
//   - Handler errors reach Unit.Wait unmodified (same value, no wrapping)
//   - Unknown actions and schema violations fail at Invoke with *ActionError
//   - Invoking on a stopped session fails at Invoke with SESSION_CLOSED
//   - Unpausing is not an error: a parked pause returns nil when cancelled
//   - A missing table is reported as envelope content, not as an error
package action
