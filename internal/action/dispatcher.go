package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/simctl/internal/loop"
	"github.com/roach88/simctl/internal/schema"
	"github.com/roach88/simctl/internal/session"
)

// Handler is the body of an action that keeps no loop-owned state.
// args holds the JSON object the caller supplied, possibly empty.
type Handler func(ctx context.Context, s *session.Session, args json.RawMessage) (any, error)

// Step is the first part of an action. It runs on the session loop, in
// invocation order, and may touch loop-owned state directly. It must not
// block or call s.Loop.Call. A nil Rest means the action is complete.
type Step func(ctx context.Context, s *session.Session, args json.RawMessage) (Rest, error)

// Rest is the part of an action that waits. It runs on the unit's own
// goroutine.
type Rest func(ctx context.Context) (any, error)

// Dispatcher maps action names to steps.
//
// Thread-safety: Register, Names and Invoke are safe from any goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	steps    map[string]Step
	schemas  *schema.Schemas
	ids      IDGenerator
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSchemas validates arguments against s before each invocation.
func WithSchemas(s *schema.Schemas) Option {
	return func(d *Dispatcher) { d.schemas = s }
}

// WithIDGenerator overrides the invocation id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Dispatcher) { d.ids = g }
}

// WithLogger sets the interceptor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		steps:    make(map[string]Step),
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDefault creates a dispatcher holding the built-in actions, validated
// against the embedded argument schemas.
func NewDefault(opts ...Option) (*Dispatcher, error) {
	schemas, err := schema.Default()
	if err != nil {
		return nil, err
	}

	d := New(append([]Option{WithSchemas(schemas)}, opts...)...)
	if err := RegisterBuiltins(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Register adds a handler under name. The whole handler runs off the loop.
func (d *Dispatcher) Register(name string, h Handler) error {
	if h == nil {
		return &ActionError{Code: ErrCodeInvalidArgs, Action: name, Message: "handler is nil"}
	}
	return d.RegisterStep(name, func(_ context.Context, s *session.Session, args json.RawMessage) (Rest, error) {
		return func(ctx context.Context) (any, error) {
			return h(ctx, s, args)
		}, nil
	})
}

// RegisterStep adds a two-part action under name.
func (d *Dispatcher) RegisterStep(name string, step Step) error {
	if name == "" {
		return &ActionError{Code: ErrCodeInvalidArgs, Action: name, Message: "action name is empty"}
	}
	if step == nil {
		return &ActionError{Code: ErrCodeInvalidArgs, Action: name, Message: "handler is nil"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.steps[name]; exists {
		return &ActionError{Code: ErrCodeDuplicateAction, Action: name, Message: "action already registered"}
	}
	d.steps[name] = step
	return nil
}

// Names returns the registered action names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.steps))
	for name := range d.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke schedules the named action and returns its unit of work.
//
// Lookup and argument validation happen before scheduling; their failures
// are returned here as *ActionError and no unit is created. The action's
// Step is queued on the session loop before Invoke returns, so actions
// invoked one after another start in that order.
func (d *Dispatcher) Invoke(ctx context.Context, s *session.Session, name string, args json.RawMessage) (*Unit, error) {
	d.mu.RLock()
	step, ok := d.steps[name]
	d.mu.RUnlock()
	if !ok {
		return nil, &ActionError{Code: ErrCodeUnknownAction, Action: name, Message: "no such action"}
	}

	if d.schemas != nil {
		if err := d.schemas.Validate(name, args); err != nil {
			return nil, &ActionError{Code: ErrCodeInvalidArgs, Action: name, Message: "arguments rejected", Err: err}
		}
	}

	u := newUnit(name, d.ids.Generate())
	if !s.Loop.Submit(func() { d.start(ctx, s, step, u, args) }) {
		return nil, &ActionError{Code: ErrCodeSessionClosed, Action: name, Message: "session loop stopped", Err: loop.ErrStopped}
	}
	return u, nil
}

// Call invokes the action and waits for its result.
func (d *Dispatcher) Call(ctx context.Context, s *session.Session, name string, args json.RawMessage) (any, error) {
	u, err := d.Invoke(ctx, s, name, args)
	if err != nil {
		return nil, err
	}
	return u.Wait(ctx)
}

// start runs on the loop. It is the single interceptor every invocation
// passes through: the step runs here and the rest, if any, is handed to
// its own goroutine.
func (d *Dispatcher) start(ctx context.Context, s *session.Session, step Step, u *Unit, args json.RawMessage) {
	d.logger.Debug("action invoked",
		"action", u.name,
		"id", u.id,
		"args", string(args),
	)

	rest, err := step(ctx, s, args)
	if err != nil || rest == nil {
		d.finish(u, nil, err)
		return
	}

	go func() {
		result, err := rest(ctx)
		d.finish(u, result, err)
	}()
}

// finish logs the outcome and completes u. The error is stored as-is.
func (d *Dispatcher) finish(u *Unit, result any, err error) {
	if err != nil {
		d.logger.Error("action failed",
			"action", u.name,
			"id", u.id,
			"error", err,
		)
	} else {
		d.logger.Debug("action returned",
			"action", u.name,
			"id", u.id,
			"result", fmt.Sprint(result),
		)
	}

	u.finish(result, err)
}
