// Package backend defines the query contracts actions consume and a SQLite
// implementation of them.
//
// Two roles exist per session:
//   - the in-memory backend (Memory), which owns the table registry and
//     answers data queries through a Queryable source
//   - the read-only file backend, a TableLister naming every table on disk
//
// # Database Configuration
//
// Writable databases use the same settings as the rest of the tooling:
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single pooled connection
//
// Read-only databases are opened with mode=ro and only set busy_timeout.
//
// Queries are always parameterized and ordered by rowid so repeated reads
// of the same table render identical JSON.
package backend
