// Package loop implements the single-writer event loop that owns session state.
//
// ARCHITECTURE:
//
// One goroutine calls Loop.Run and executes submitted closures one at a time,
// in FIFO order. Actions start with a closure queued through Submit, which
// fixes their order, and do all of their waiting (sleeping, parking,
// awaiting worker results) on their own goroutines. Code outside the loop
// that needs session-owned state hands a closure to Loop.Call.
//
// CRITICAL: a closure is never interleaved with another closure. Code inside a
// single Call therefore runs atomically with respect to every other action,
// which is what makes read-compute-replace updates safe:
//
//	l.Call(ctx, func() {
//	    cur := mem.Registry
//	    mem.Registry = cur.Union(add)
//	})
//
// Closures must not block. A closure that waits on a channel fed by another
// action deadlocks the loop.
package loop
