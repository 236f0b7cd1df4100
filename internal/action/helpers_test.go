package action

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/simctl/internal/session"
	"github.com/roach88/simctl/internal/testutil"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := NewDefault(
		WithIDGenerator(testutil.NewSequenceGenerator("")),
		WithLogger(testutil.DiscardLogger()),
	)
	require.NoError(t, err)
	return d
}

// call runs an action to completion with a one second limit.
func call(t *testing.T, d *Dispatcher, s *session.Session, name, args string) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return d.Call(ctx, s, name, json.RawMessage(args))
}

// mustCall is call that requires success.
func mustCall(t *testing.T, d *Dispatcher, s *session.Session, name, args string) {
	t.Helper()
	_, err := call(t, d, s, name, args)
	require.NoError(t, err)
}

// taskCount reads the task table on the loop.
func taskCount(t *testing.T, s *session.Session) int {
	t.Helper()
	var n int
	require.NoError(t, s.Loop.Call(context.Background(), func() { n = s.Tasks.Len() }))
	return n
}
