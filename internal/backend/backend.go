package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/simctl/internal/tables"
)

// Queryable answers table queries.
// Query returns (nil, nil) when the table does not exist.
type Queryable interface {
	Query(ctx context.Context, table string, conds []Cond) (*Frame, error)
}

// TableLister names the tables a backend holds.
type TableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

// Memory is the in-memory backend of a session.
//
// Registry is loop-owned: read and replace it only inside a loop call.
// Query never touches Registry and is safe to run on a worker.
type Memory struct {
	Registry tables.Set
	Source   Queryable
}

// NewMemory returns a Memory with an empty registry.
func NewMemory(src Queryable) *Memory {
	return &Memory{Registry: tables.NewSet(), Source: src}
}

// Query delegates to the underlying source.
func (m *Memory) Query(ctx context.Context, table string, conds []Cond) (*Frame, error) {
	if m.Source == nil {
		return nil, nil
	}
	return m.Source.Query(ctx, table, conds)
}

// TableJSON renders a table as JSON in the given orientation.
//
// A missing table is not an error: the result is the JSON string
// "<table> is not available.".
func TableJSON(ctx context.Context, q Queryable, table string, conds []Cond, orient Orient) (json.RawMessage, error) {
	frame, err := q.Query(ctx, table, conds)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	if frame == nil {
		return NotAvailable(table), nil
	}
	return frame.JSON(orient)
}

// NotAvailable returns the JSON string payload used for missing tables.
func NotAvailable(table string) json.RawMessage {
	b, _ := json.Marshal(table + " is not available.")
	return b
}
