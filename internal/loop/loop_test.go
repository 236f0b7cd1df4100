package loop

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return l
}

func TestLoop_CallRunsClosure(t *testing.T) {
	l := newTestLoop(t)

	ran := false
	err := l.Call(context.Background(), func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLoop_SubmitPreservesOrder(t *testing.T) {
	l := newTestLoop(t)

	var order []int
	for i := 0; i < 100; i++ {
		require.True(t, l.Submit(func() { order = append(order, i) }))
	}
	// Call is queued behind the submits, so it observes all of them
	var got []int
	require.NoError(t, l.Call(context.Background(), func() { got = append(got, order...) }))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_ClosuresNeverInterleave(t *testing.T) {
	l := newTestLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Call(context.Background(), func() {
				cur := counter
				counter = cur + 1
			})
		}()
	}
	wg.Wait()

	var final int
	require.NoError(t, l.Call(context.Background(), func() { final = counter }))
	assert.Equal(t, 50, final)
}

func TestLoop_StopDrainsBacklog(t *testing.T) {
	l := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	count := 0
	for i := 0; i < 5; i++ {
		l.Submit(func() { count++ })
	}
	l.Stop()

	err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	select {
	case <-l.Done():
	default:
		t.Fatal("Done should be closed after Run returns")
	}
}

func TestLoop_CallAfterStop(t *testing.T) {
	l := New(nil)
	l.Stop()
	require.NoError(t, l.Run(context.Background()))

	err := l.Call(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, l.Submit(func() {}))
}

func TestLoop_RunReturnsOnCancel(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_CallHonoursContext(t *testing.T) {
	// No Run goroutine: the closure is never executed
	l := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Call(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
