// Package vm interprets protocol graphs.
//
// A protocol entity's graph is a small state machine: start, call, branch,
// merge, set, and return nodes joined by (optionally conditional) edges.
// The interpreter is fuel-bounded and records every visited node so a run
// can be reconstructed from its trace.
package vm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
)

// DefaultMaxSteps bounds a single protocol run.
const DefaultMaxSteps = 1000

// VM executes protocol graphs against a primitive registry.
type VM struct {
	Registry *primitive.Registry
	Exec     *primitive.ExecContext

	// MaxSteps overrides DefaultMaxSteps when positive.
	MaxSteps int

	Logger *zap.Logger
}

func (m *VM) maxSteps() int {
	if m.MaxSteps > 0 {
		return m.MaxSteps
	}
	return DefaultMaxSteps
}

func (m *VM) log() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// Run executes a protocol entity's graph with the given inputs, returning
// the terminal state. The state is always terminal: fulfilled with an
// output and exit node, or failed with an error kind from the closed
// taxonomy.
func (m *VM) Run(ctx context.Context, protocol *schema.Entity, inputs map[string]any) *State {
	st := newState(protocol.ID, inputs)

	graph, err := schema.ParseGraph(protocol.Data)
	if err != nil {
		return st.fail(primitive.KindExecutionError, fmt.Sprintf("invalid protocol graph: %v", err))
	}

	if err := validateInputs(protocol.Data, inputs); err != nil {
		return st.fail(primitive.KindInvalidInputs, err.Error())
	}

	st.Status = StatusRunning
	cursor := graph.Start()
	traversed := map[string]bool{}

	for steps := 0; ; steps++ {
		if steps >= m.maxSteps() {
			return st.fail(primitive.KindExecutionError, "step_budget_exhausted")
		}
		if err := ctx.Err(); err != nil {
			return st.fail(primitive.KindExecutionError, "timeout")
		}

		st.Cursor = cursor.ID
		st.Trace = append(st.Trace, cursor.ID)

		switch cursor.Kind {
		case schema.NodeStart, schema.NodeMerge, schema.NodeBranch:
			// Flow control only; branch arms are decided at edge selection.

		case schema.NodeSet:
			for k, v := range resolveMap(cursor.Assign, st.Bindings) {
				st.Bindings[k] = v
			}

		case schema.NodeCall:
			resp := m.call(ctx, cursor, st.Bindings)
			if resp.IsError() {
				return st.fail(resp.ErrorKind, fmt.Sprintf("%s: %s", cursor.ID, resp.ErrorMessage))
			}
			st.Bindings[cursor.ID] = resp.Data

		case schema.NodeReturn:
			st.Status = StatusFulfilled
			st.ExitNode = cursor.ID
			st.Output = resolveMap(cursor.Outputs, st.Bindings)
			return st
		}

		next, edge, ok := m.selectEdge(graph, cursor, st.Bindings)
		if !ok {
			if cursor.Kind == schema.NodeBranch {
				return st.fail(primitive.KindExecutionError, "no_branch")
			}
			// A dead end outside a return node fulfills with no output.
			st.Status = StatusFulfilled
			return st
		}

		// An edge may only be traversed once per run. Revisiting a node
		// through a different branch arm uses a different edge and is
		// allowed; retracing the same edge is a cycle.
		if traversed[edge] {
			return st.fail(primitive.KindExecutionError, "cycle_detected")
		}
		traversed[edge] = true

		cursor = next
	}
}

// call runs a call node. Primitive ids prefixed protocol- spawn a child
// protocol run through the registry's installed invoker.
func (m *VM) call(ctx context.Context, node *schema.Node, bindings map[string]any) primitive.Response {
	args, _ := resolveValue(node.Inputs, bindings).(map[string]any)
	if args == nil {
		args = map[string]any{}
	}

	m.log().Debug("vm call",
		zap.String("node", node.ID),
		zap.String("primitive", node.Primitive),
	)

	if strings.HasPrefix(node.Primitive, "protocol-") {
		return m.Registry.InvokeProtocol(ctx, node.Primitive, args)
	}

	return m.Registry.Call(ctx, node.Primitive, args, m.Exec)
}

// selectEdge picks the next node: first matching conditional edge, else
// the default edge, else the first unconditional edge.
func (m *VM) selectEdge(graph *schema.ProtocolGraph, cursor *schema.Node, bindings map[string]any) (*schema.Node, string, bool) {
	edges := graph.EdgesFrom(cursor.ID)
	if len(edges) == 0 {
		return nil, "", false
	}

	pick := func(e schema.Edge) (*schema.Node, string, bool) {
		return graph.NodeByID(e.To), e.From + "->" + e.To, true
	}

	for _, e := range edges {
		if e.Condition != nil && evalCondition(e.Condition, bindings) {
			return pick(e)
		}
	}
	for _, e := range edges {
		if e.Default {
			return pick(e)
		}
	}
	for _, e := range edges {
		if e.Condition == nil && !e.Default {
			return pick(e)
		}
	}

	return nil, "", false
}

// validateInputs enforces the protocol's inputs_schema required list when
// present.
func validateInputs(data, inputs map[string]any) error {
	schemaRaw, ok := data["inputs_schema"].(map[string]any)
	if !ok {
		return nil
	}
	required, ok := schemaRaw["required"].([]any)
	if !ok {
		return nil
	}

	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if v, present := inputs[name]; !present || v == nil {
			return fmt.Errorf("missing required input %q", name)
		}
	}
	return nil
}
