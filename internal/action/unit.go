package action

import "context"

// Unit is one scheduled invocation of an action.
type Unit struct {
	name   string
	id     string
	done   chan struct{}
	result any
	err    error
}

func newUnit(name, id string) *Unit {
	return &Unit{name: name, id: id, done: make(chan struct{})}
}

// Name returns the action name the unit was dispatched under.
func (u *Unit) Name() string { return u.name }

// ID returns the invocation id.
func (u *Unit) ID() string { return u.id }

// Done is closed when the handler has returned.
func (u *Unit) Done() <-chan struct{} { return u.done }

// Wait blocks until the handler returns or ctx is done, and returns the
// handler's result and error unchanged.
func (u *Unit) Wait(ctx context.Context) (any, error) {
	select {
	case <-u.done:
		return u.result, u.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (u *Unit) finish(result any, err error) {
	u.result = result
	u.err = err
	close(u.done)
}
