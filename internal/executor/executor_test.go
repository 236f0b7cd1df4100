package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_ReturnsValue(t *testing.T) {
	p := New(2, nil)
	defer p.Close()

	f := Submit(p, func() (string, error) { return "done", nil })
	got, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestSubmit_ReturnsErrorUnmodified(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	boom := errors.New("boom")
	f := Submit(p, func() (int, error) { return 0, boom })
	_, err := f.Await(context.Background())
	assert.Same(t, boom, err)
}

func TestSubmit_DoesNotBlockCaller(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	release := make(chan struct{})
	first := Submit(p, func() (int, error) { <-release; return 1, nil })

	// The single worker is busy; Submit must still return at once
	returned := make(chan *Future[int], 1)
	go func() { returned <- Submit(p, func() (int, error) { return 2, nil }) }()

	var second *Future[int]
	select {
	case second = <-returned:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked while the pool was full")
	}

	close(release)
	v1, err := first.Await(context.Background())
	require.NoError(t, err)
	v2, err := second.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
}

func TestPool_RespectsLimit(t *testing.T) {
	const workers = 2
	p := New(workers, nil)

	var running, peak atomic.Int32
	futures := make([]*Future[struct{}], 10)
	for i := range futures {
		futures[i] = Submit(p, func() (struct{}, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		})
	}
	p.Close()

	for _, f := range futures {
		_, err := f.Await(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestAwait_HonoursContext(t *testing.T) {
	p := New(1, nil)
	release := make(chan struct{})
	defer func() {
		close(release)
		p.Close()
	}()

	f := Submit(p, func() (int, error) { <-release; return 0, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit_AfterClose(t *testing.T) {
	p := New(1, nil)
	p.Close()

	f := Submit(p, func() (int, error) { return 1, nil })
	_, err := f.Await(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_WaitsForRunningWork(t *testing.T) {
	p := New(1, nil)

	var finished atomic.Bool
	Submit(p, func() (int, error) {
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return 0, nil
	})
	p.Close()

	assert.True(t, finished.Load())
}
