// Package session holds the per-connection state every action receives.
//
// A Session is an explicit value passed to each action; there is no
// process-wide session. Fields fall into two groups:
//
// Loop-owned (read and write only in closures running on Loop):
//   - Tasks
//   - Memory.Registry
//
// Safe from any goroutine:
//   - Queue, Loop, Executor, Files, Logger
//   - Memory.Query (it does not read the registry)
package session
