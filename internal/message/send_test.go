package message

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Echo(t *testing.T) {
	q := NewQueue()

	err := Send(context.Background(), q, "echo", map[string]any{"s": "hi"}, "hi")
	require.NoError(t, err)

	msg, ok := q.TryGet()
	require.True(t, ok)
	assert.Equal(t, `{"event":"echo","params":{"s":"hi"},"data":"hi"}`, string(msg))
}

func TestSend_DefaultsToNull(t *testing.T) {
	q := NewQueue()

	require.NoError(t, Send(context.Background(), q, "ping", nil, nil))

	msg, _ := q.TryGet()
	assert.Equal(t, `{"event":"ping","params":null,"data":null}`, string(msg))
}

func TestSend_SplicesRawJSON(t *testing.T) {
	q := NewQueue()

	raw := json.RawMessage(`{"columns":["a"],"index":[0],"data":[[1]]}`)
	require.NoError(t, Send(context.Background(), q, "table_data", nil, raw))

	msg, _ := q.TryGet()
	assert.Equal(t,
		`{"event":"table_data","params":null,"data":{"columns":["a"],"index":[0],"data":[[1]]}}`,
		string(msg))
}

func TestSend_RejectsInvalidRawJSON(t *testing.T) {
	q := NewQueue()

	err := Send(context.Background(), q, "bad", nil, json.RawMessage(`not json`))
	require.Error(t, err)
	assert.Equal(t, 0, q.Len(), "nothing is queued when encoding fails")
}

func TestSend_NoHTMLEscaping(t *testing.T) {
	q := NewQueue()

	require.NoError(t, Send(context.Background(), q, "echo", nil, "<a&b>"))

	msg, _ := q.TryGet()
	assert.Equal(t, `{"event":"echo","params":null,"data":"<a&b>"}`, string(msg))
}

func TestSend_FIFOOnePerCall(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	for _, s := range []string{"a", "b", "a"} {
		require.NoError(t, Send(ctx, q, "echo", nil, s))
	}

	require.Equal(t, 3, q.Len(), "no coalescing")
	for _, want := range []string{`"a"`, `"b"`, `"a"`} {
		msg, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{"event":"echo","params":null,"data":`+want+`}`, string(msg))
	}
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q := NewQueue()

	got := make(chan []byte, 1)
	go func() {
		msg, err := q.Get(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(context.Background(), []byte(`1`)))

	select {
	case msg := <-got:
		assert.Equal(t, "1", string(msg))
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock")
	}
}

func TestQueue_CloseDrainsThenFails(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()

	require.NoError(t, q.Put(ctx, []byte(`1`)))
	q.Close()

	assert.ErrorIs(t, q.Put(ctx, []byte(`2`)), ErrQueueClosed)

	msg, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", string(msg))

	_, err = q.Get(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_PutHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, q.Put(ctx, []byte(`1`)), context.Canceled)
}
