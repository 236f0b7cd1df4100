// Package schema validates action arguments against embedded CUE definitions.
//
// Every action named in actions.cue has a definition of the same name
// prefixed with '#'. Validate unifies the decoded arguments with that
// definition and requires the result to be concrete, so missing, extra and
// mistyped arguments are all rejected before a handler runs.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed actions.cue
var actionsCUE string

// ValidationError reports arguments that do not satisfy an action's schema.
type ValidationError struct {
	Action  string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Action, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Schemas holds compiled action definitions.
//
// A cue.Context is not safe for concurrent use, so validation is serialized.
type Schemas struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value
}

var (
	defaultOnce    sync.Once
	defaultSchemas *Schemas
	defaultErr     error
)

// Default returns the schemas compiled from the embedded source.
func Default() (*Schemas, error) {
	defaultOnce.Do(func() {
		defaultSchemas, defaultErr = Compile(actionsCUE)
	})
	return defaultSchemas, defaultErr
}

// Compile builds schemas from CUE source.
func Compile(src string) (*Schemas, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename("actions.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile action schemas: %w", formatCUEError("schema", err))
	}
	return &Schemas{ctx: ctx, root: root}, nil
}

// Has reports whether a definition exists for action.
func (s *Schemas) Has(action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(action)
	return ok
}

// Validate checks JSON-encoded arguments against the action's definition.
// Empty args are treated as {}. Actions without a definition pass unchecked.
func (s *Schemas) Validate(action string, args json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.lookup(action)
	if !ok {
		return nil
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return &ValidationError{Action: action, Message: fmt.Sprintf("arguments are not valid JSON: %v", err)}
	}
	if _, ok := decoded.(map[string]any); !ok {
		return &ValidationError{Action: action, Message: "arguments must be a JSON object"}
	}

	v := s.ctx.Encode(decoded)
	if err := v.Err(); err != nil {
		return formatCUEError(action, err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(action, err)
	}
	return nil
}

func (s *Schemas) lookup(action string) (cue.Value, bool) {
	p := cue.ParsePath("#" + action)
	if p.Err() != nil {
		return cue.Value{}, false
	}
	v := s.root.LookupPath(p)
	return v, v.Exists()
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(action string, err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Action: action, Message: err.Error()}
	}

	first := errs[0]
	verr := &ValidationError{Action: action, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		verr.Pos = positions[0]
	}
	return verr
}
