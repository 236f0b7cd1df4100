// Package harness runs scripted action sessions and checks their output.
//
// A scenario is a YAML list of action invocations. The harness runs them
// against a fresh session with deterministic invocation ids, collects every
// envelope the session queued (the transcript) and evaluates assertions
// against the transcript and the final table registry.
//
//	name: registry_roundtrip
//	description: register then deregister
//	steps:
//	  - invoke: register_tables
//	    args: {tables: [b, a]}
//	  - invoke: deregister_tables
//	    args: {tables: a}
//	assertions:
//	  - type: registry
//	    tables: [b]
//
// Steps run one after another and each waits for its action to finish,
// unless marked async. Actions start in step order, so an unpause after an
// async pause finds it. An async step with an id can be awaited by a later
// step; the wait releases nothing, so the unit has to finish on its own:
//
//	  - invoke: pause
//	    async: true
//	    id: pause
//	  - invoke: unpause
//	  - await: pause
//
// Async steps still pending when the script ends are awaited after parked
// tasks are released. await_task delays a step until a task of that name
// is live.
//
// Transcripts are compared against golden files with RunWithGolden.
package harness
