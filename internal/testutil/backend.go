package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/roach88/simctl/internal/backend"
)

// StaticBackend serves fixed frames. It implements backend.Queryable and
// backend.TableLister.
type StaticBackend struct {
	Frames map[string]*backend.Frame
	Names  []string
	// Delay is slept inside every Query to simulate a slow backend.
	Delay time.Duration
	// Err, when set, is returned by every call.
	Err error

	queries atomic.Int64
}

// Query returns the frame stored under table, or nil.
func (b *StaticBackend) Query(ctx context.Context, table string, _ []backend.Cond) (*backend.Frame, error) {
	b.queries.Add(1)
	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.Err != nil {
		return nil, b.Err
	}
	return b.Frames[table], nil
}

// Tables returns Names as given.
func (b *StaticBackend) Tables(context.Context) ([]string, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	return append([]string{}, b.Names...), nil
}

// Queries reports how many times Query ran.
func (b *StaticBackend) Queries() int64 {
	return b.queries.Load()
}
