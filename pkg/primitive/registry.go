// Package primitive holds the native operation registry and the standard
// response envelope every primitive returns.
package primitive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/embeddings"
	"github.com/papercomputeco/chora/pkg/store"
)

// Handler is a native primitive implementation.
type Handler func(ctx context.Context, inputs map[string]any, ec *ExecContext) Response

// Spec declares a primitive: identity, documentation, and input schema.
type Spec struct {
	// ID is the full primitive id, conventionally primitive-{name}.
	ID          string
	Description string
	Required    []string
	Optional    []string
	Handler     Handler
}

// ProtocolInvoker lets primitives execute protocols without importing the
// engine. The engine installs itself here at startup.
type ProtocolInvoker func(ctx context.Context, protocolID string, inputs map[string]any) Response

// TaskSubmitter enqueues a protocol for asynchronous execution and returns
// the task id. The second return is false when the task could not be
// queued. The worker pool implements it.
type TaskSubmitter interface {
	Submit(ctx context.Context, protocolID string, inputs map[string]any) (string, bool)
}

// ExecContext carries the collaborators a primitive may use. User-visible
// text goes through Emit; handlers never write to raw stdout.
type ExecContext struct {
	Store     *store.Store
	Registry  *Registry
	Sink      io.Writer
	PersonaID string
	Logger    *zap.Logger

	// Embedder is optional; nil means fallback-only semantic operations.
	Embedder  embeddings.Embedder
	ModelName string

	// Tasks is optional; nil means async protocol execution is unavailable.
	Tasks TaskSubmitter
}

// Emit writes user-visible text through the sink, falling back to stdout.
func (ec *ExecContext) Emit(text string) {
	w := ec.Sink
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w, text)
}

// Log returns the context logger, never nil.
func (ec *ExecContext) Log() *zap.Logger {
	if ec.Logger == nil {
		return zap.NewNop()
	}
	return ec.Logger
}

// Registry maps primitive ids to handlers. Read-only after initialization.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]Spec
	invoker ProtocolInvoker
}

func NewRegistry() *Registry {
	return &Registry{specs: map[string]Spec{}}
}

// Register adds a primitive. Re-registering an id replaces it.
func (r *Registry) Register(s Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[s.ID] = s
}

// Get looks up a primitive by its full id.
func (r *Registry) Get(id string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[id]
	return s, ok
}

// List returns all registered primitives sorted by id.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetProtocolInvoker installs the engine's protocol execution path so
// primitives (and the pulse) can run protocols without a circular import.
func (r *Registry) SetProtocolInvoker(fn ProtocolInvoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoker = fn
}

// InvokeProtocol runs a protocol through the installed invoker.
func (r *Registry) InvokeProtocol(ctx context.Context, protocolID string, inputs map[string]any) Response {
	r.mu.RLock()
	fn := r.invoker
	r.mu.RUnlock()

	if fn == nil {
		return Fail(KindDependencyUnavailable, "no protocol invoker installed")
	}
	return fn(ctx, protocolID, inputs)
}

// Call validates inputs against the spec and runs the handler.
func (r *Registry) Call(ctx context.Context, id string, inputs map[string]any, ec *ExecContext) Response {
	s, ok := r.Get(id)
	if !ok {
		return Fail(KindPrimitiveNotFound, "primitive not found: %s", id)
	}

	if inputs == nil {
		inputs = map[string]any{}
	}

	for _, req := range s.Required {
		v, present := inputs[req]
		if !present || v == nil {
			return Fail(KindInvalidInputs, "%s: missing required input %q", id, req)
		}
	}

	if ec == nil {
		ec = &ExecContext{}
	}
	if ec.Registry == nil {
		ec.Registry = r
	}

	return s.Handler(ctx, inputs, ec)
}

// StringInput extracts a required string field, second return false when
// missing or not a string.
func StringInput(inputs map[string]any, key string) (string, bool) {
	v, ok := inputs[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FloatInput extracts a numeric field, accepting JSON's float64 and ints.
func FloatInput(inputs map[string]any, key string) (float64, bool) {
	switch v := inputs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// MapInput extracts an object field.
func MapInput(inputs map[string]any, key string) (map[string]any, bool) {
	v, ok := inputs[key].(map[string]any)
	return v, ok
}
