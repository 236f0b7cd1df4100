package action

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simctl/internal/loop"
	"github.com/roach88/simctl/internal/session"
	"github.com/roach88/simctl/internal/testutil"
)

func TestDispatcher_BuiltinNames(t *testing.T) {
	d := newTestDispatcher(t)

	assert.Equal(t, []string{
		"deregister_tables",
		"echo",
		"pause",
		"register_tables",
		"send_registry_action",
		"send_table_data",
		"send_table_names",
		"sleep",
		"unpause",
	}, d.Names())
}

func TestDispatcher_RegisterRejectsDuplicates(t *testing.T) {
	d := New()
	h := func(context.Context, *session.Session, json.RawMessage) (any, error) { return nil, nil }

	require.NoError(t, d.Register("a", h))
	err := d.Register("a", h)

	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodeDuplicateAction, ae.Code)
}

func TestDispatcher_RegisterRejectsEmpty(t *testing.T) {
	d := New()
	assert.Error(t, d.Register("", func(context.Context, *session.Session, json.RawMessage) (any, error) { return nil, nil }))
	assert.Error(t, d.Register("x", nil))
}

func TestDispatcher_UnknownAction(t *testing.T) {
	d := newTestDispatcher(t)
	s := testutil.NewSession(t, session.Config{})

	u, err := d.Invoke(context.Background(), s, "nope", nil)
	assert.Nil(t, u)
	assert.True(t, IsUnknownAction(err))
}

func TestDispatcher_InvalidArgs(t *testing.T) {
	d := newTestDispatcher(t)
	s := testutil.NewSession(t, session.Config{})

	_, err := d.Invoke(context.Background(), s, "echo", json.RawMessage(`{"s":1}`))
	assert.True(t, IsInvalidArgs(err))
	assert.Empty(t, testutil.Drain(s.Queue), "nothing runs when args are rejected")
}

func TestDispatcher_InvokeReturnsUnit(t *testing.T) {
	d := New(WithIDGenerator(testutil.NewSequenceGenerator("")), WithLogger(testutil.DiscardLogger()))
	s := testutil.NewSession(t, session.Config{})

	release := make(chan struct{})
	require.NoError(t, d.Register("slow", func(ctx context.Context, _ *session.Session, _ json.RawMessage) (any, error) {
		<-release
		return 42, nil
	}))

	u, err := d.Invoke(context.Background(), s, "slow", nil)
	require.NoError(t, err)
	assert.Equal(t, "slow", u.Name())
	assert.Equal(t, "inv-1", u.ID())

	select {
	case <-u.Done():
		t.Fatal("handler result must not be available synchronously")
	default:
	}

	close(release)
	got, err := u.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDispatcher_HandlerErrorPropagatesUnmodified(t *testing.T) {
	d := New(WithLogger(testutil.DiscardLogger()))
	s := testutil.NewSession(t, session.Config{})

	boom := errors.New("boom")
	require.NoError(t, d.Register("fail", func(context.Context, *session.Session, json.RawMessage) (any, error) {
		return nil, boom
	}))

	_, err := d.Call(context.Background(), s, "fail", nil)
	assert.Same(t, boom, err)
}

func TestUnit_WaitHonoursContext(t *testing.T) {
	u := newUnit("x", "id")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_StepsRunInInvokeOrder(t *testing.T) {
	d := New(WithLogger(testutil.DiscardLogger()))
	s := testutil.NewSession(t, session.Config{})

	// Loop-owned, so no lock
	var order []int
	require.NoError(t, d.RegisterStep("mark", func(_ context.Context, _ *session.Session, args json.RawMessage) (Rest, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		order = append(order, n)
		return nil, nil
	}))

	units := make([]*Unit, 0, 20)
	for i := 0; i < 20; i++ {
		u, err := d.Invoke(context.Background(), s, "mark", json.RawMessage(strconv.Itoa(i)))
		require.NoError(t, err)
		units = append(units, u)
	}
	for _, u := range units {
		_, err := u.Wait(context.Background())
		require.NoError(t, err)
	}

	var got []int
	require.NoError(t, s.Loop.Call(context.Background(), func() { got = append(got, order...) }))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, got)
}

func TestDispatcher_StepErrorSkipsRest(t *testing.T) {
	d := New(WithLogger(testutil.DiscardLogger()))
	s := testutil.NewSession(t, session.Config{})

	boom := errors.New("boom")
	restRan := make(chan struct{}, 1)
	require.NoError(t, d.RegisterStep("fail", func(context.Context, *session.Session, json.RawMessage) (Rest, error) {
		return func(context.Context) (any, error) {
			restRan <- struct{}{}
			return nil, nil
		}, boom
	}))

	_, err := d.Call(context.Background(), s, "fail", nil)
	assert.Same(t, boom, err)
	assert.Empty(t, restRan)
}

func TestDispatcher_RegisterStepRejectsNil(t *testing.T) {
	d := New()
	var ae *ActionError
	require.ErrorAs(t, d.RegisterStep("x", nil), &ae)
	assert.Equal(t, ErrCodeInvalidArgs, ae.Code)
}

func TestDispatcher_InvokeOnClosedSession(t *testing.T) {
	d := newTestDispatcher(t)
	s := session.New(session.Config{Logger: testutil.DiscardLogger()})
	s.Start(context.Background())
	require.NoError(t, s.Close())

	u, err := d.Invoke(context.Background(), s, "echo", json.RawMessage(`{"s":"late"}`))
	assert.Nil(t, u)

	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodeSessionClosed, ae.Code)
	assert.ErrorIs(t, err, loop.ErrStopped)
}
