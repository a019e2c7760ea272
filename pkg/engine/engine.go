// Package engine resolves intents and dispatches them to primitives or the
// protocol VM. It owns the closed error taxonomy surfaced to front ends.
package engine

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
	"github.com/papercomputeco/chora/pkg/vm"
)

// Engine is the dispatch surface. One engine serves one store and one
// primitive registry; construct it with New so the protocol invoker is
// installed on the registry.
type Engine struct {
	store    *store.Store
	registry *primitive.Registry
	logger   *zap.Logger

	// maxSteps bounds protocol runs; zero means the VM default.
	maxSteps int
}

// Config holds engine construction options.
type Config struct {
	Store    *store.Store
	Registry *primitive.Registry
	Logger   *zap.Logger
	MaxSteps int
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Engine{
		store:    cfg.Store,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		maxSteps: cfg.MaxSteps,
	}

	// Primitives and the pulse reach protocols back through the registry.
	cfg.Registry.SetProtocolInvoker(e.invokeProtocol)

	return e
}

// Result is the uniform dispatch outcome. Exactly one of OK true/false
// holds; on failure ErrorKind is from the closed taxonomy.
type Result struct {
	OK           bool           `json:"ok"`
	Data         map[string]any `json:"data,omitempty"`
	ExitNode     string         `json:"exit_node,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

func failure(kind, message string) Result {
	return Result{OK: false, ErrorKind: kind, ErrorMessage: message}
}

// Kinds of resolved intents.
const (
	KindProtocol  = "protocol"
	KindPrimitive = "primitive"
)

// ResolveIntent normalizes an intent string to a concrete protocol or
// primitive id. Resolution order: verbatim, protocol-{intent},
// primitive-{intent}, then the same ladder with -/_ normalization.
// Protocols win ties.
func (e *Engine) ResolveIntent(ctx context.Context, intent string) (id, kind string, found bool) {
	variants := []string{intent}
	if v := strings.ReplaceAll(intent, "_", "-"); v != intent {
		variants = append(variants, v)
	}
	if v := strings.ReplaceAll(intent, "-", "_"); v != intent {
		variants = append(variants, v)
	}

	for _, v := range variants {
		if e.isProtocol(ctx, v) {
			return v, KindProtocol, true
		}
		if _, ok := e.registry.Get(v); ok {
			return v, KindPrimitive, true
		}

		if withPrefix := "protocol-" + v; e.isProtocol(ctx, withPrefix) {
			return withPrefix, KindProtocol, true
		}
		if _, ok := e.registry.Get("primitive-" + v); ok {
			return "primitive-" + v, KindPrimitive, true
		}
	}

	return "", "", false
}

func (e *Engine) isProtocol(ctx context.Context, id string) bool {
	ent, err := e.store.GetEntity(ctx, id)
	return err == nil && ent.Type == schema.KindProtocol
}

// Dispatch resolves and executes an intent. The exec context carries the
// sink and persona; a nil context gets the engine's store and registry
// filled in.
func (e *Engine) Dispatch(ctx context.Context, intent string, inputs map[string]any, ec *primitive.ExecContext) Result {
	if ec == nil {
		ec = &primitive.ExecContext{}
	}
	if ec.Store == nil {
		ec.Store = e.store
	}
	if ec.Registry == nil {
		ec.Registry = e.registry
	}
	if ec.Logger == nil {
		ec.Logger = e.logger
	}

	id, kind, found := e.ResolveIntent(ctx, intent)
	if !found {
		return failure(primitive.KindIntentNotFound, "no protocol or primitive matches intent: "+intent)
	}

	e.logger.Debug("dispatch",
		zap.String("intent", intent),
		zap.String("resolved", id),
		zap.String("kind", kind),
	)

	switch kind {
	case KindPrimitive:
		resp := e.registry.Call(ctx, id, inputs, ec)
		if resp.IsError() {
			return failure(resp.ErrorKind, resp.ErrorMessage)
		}
		return Result{OK: true, Data: resp.Data}

	default:
		return e.runProtocol(ctx, id, inputs, ec)
	}
}

func (e *Engine) runProtocol(ctx context.Context, protocolID string, inputs map[string]any, ec *primitive.ExecContext) Result {
	ent, err := e.store.GetEntity(ctx, protocolID)
	if err != nil {
		var nf store.ErrNotFound
		if errors.As(err, &nf) {
			return failure(primitive.KindProtocolNotFound, "protocol not found: "+protocolID)
		}
		return failure(primitive.KindExecutionError, err.Error())
	}

	machine := &vm.VM{
		Registry: e.registry,
		Exec:     ec,
		MaxSteps: e.maxSteps,
		Logger:   e.logger,
	}

	st := machine.Run(ctx, ent, inputs)
	if st.Status != vm.StatusFulfilled {
		return failure(st.ErrKind, st.ErrMessage)
	}

	return Result{OK: true, Data: st.Output, ExitNode: st.ExitNode}
}

// invokeProtocol is installed on the registry so call nodes and the pulse
// can execute protocols; it shares the dispatch path's VM construction.
func (e *Engine) invokeProtocol(ctx context.Context, protocolID string, inputs map[string]any) primitive.Response {
	res := e.runProtocol(ctx, protocolID, inputs, &primitive.ExecContext{
		Store:    e.store,
		Registry: e.registry,
		Logger:   e.logger,
	})
	if !res.OK {
		return primitive.Fail(res.ErrorKind, "%s", res.ErrorMessage)
	}

	data := res.Data
	if data == nil {
		data = map[string]any{}
	}
	if res.ExitNode != "" {
		data["exit_node"] = res.ExitNode
	}
	return primitive.Ok(data)
}

// Capability describes one dispatchable intent.
type Capability struct {
	ID          string              `json:"id"`
	Kind        string              `json:"kind"`
	Description string              `json:"description,omitempty"`
	Interface   CapabilityInterface `json:"interface"`
}

// CapabilityInterface declares the inputs an intent accepts.
type CapabilityInterface struct {
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

// Capabilities enumerates protocols from the store and primitives from the
// registry, protocols first, each sorted by id.
func (e *Engine) Capabilities(ctx context.Context) ([]Capability, error) {
	out := []Capability{}

	protocols, err := e.store.QueryEntities(ctx, store.EntityFilter{Type: schema.KindProtocol})
	if err != nil {
		return nil, err
	}
	// QueryEntities returns newest first; capabilities read better sorted.
	sort.Slice(protocols, func(i, j int) bool { return protocols[i].ID < protocols[j].ID })

	for _, p := range protocols {
		c := Capability{
			ID:   p.ID,
			Kind: KindProtocol,
			Interface: CapabilityInterface{
				Required: []string{},
				Optional: []string{},
			},
		}
		if d, ok := p.Data["description"].(string); ok {
			c.Description = d
		}
		if s, ok := p.Data["inputs_schema"].(map[string]any); ok {
			c.Interface.Required = stringList(s["required"])
			c.Interface.Optional = stringList(s["optional"])
		}
		out = append(out, c)
	}

	for _, s := range e.registry.List() {
		out = append(out, Capability{
			ID:          s.ID,
			Kind:        KindPrimitive,
			Description: s.Description,
			Interface: CapabilityInterface{
				Required: emptyIfNil(s.Required),
				Optional: emptyIfNil(s.Optional),
			},
		})
	}

	return out, nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
