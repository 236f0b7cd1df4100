// Package testutil provides deterministic helpers shared by package tests:
// sequential invocation ids, an in-memory backend and send-queue readers.
package testutil
