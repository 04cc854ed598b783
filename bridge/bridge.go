// Package bridge exposes Merlin's operations as named callable functions
// with fixed JSON argument and return shapes, so an external agent or the
// HTTP server can drive them. Nothing in the core depends on an agent being
// present.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/merlin-labs/merlin/core"
)

// ErrUnknownFunction is returned for a call to an unregistered name.
var ErrUnknownFunction = errors.New("bridge: unknown function")

// HandlerFunc executes one bridge function. Args is the raw JSON argument
// object; the return value must be JSON-serializable.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Function is one registered callable.
type Function struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`

	handler HandlerFunc
}

// Registry maps function names to handlers.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Function)}
}

// Register adds a function. Registering a duplicate name is an error.
func (r *Registry) Register(fn Function) error {
	if fn.Name == "" {
		return errors.New("bridge: function name is required")
	}
	if fn.handler == nil {
		return fmt.Errorf("bridge: function %q has no handler", fn.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[fn.Name]; dup {
		return fmt.Errorf("bridge: function %q already registered", fn.Name)
	}
	r.funcs[fn.Name] = fn
	return nil
}

// List returns all registered functions sorted by name.
func (r *Registry) List() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Function, 0, len(r.funcs))
	for _, fn := range r.funcs {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call invokes the named function with the given JSON arguments.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return fn.handler(ctx, args)
}

// decodeArgs unmarshals the argument object into v. Empty args leave v at
// its zero value so every argument can default.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return core.NewError(core.CodeParse, "invalid function arguments", err)
	}
	return nil
}
