package vm_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/vm"
)

func protocolEntity(id, graphJSON string) *schema.Entity {
	var g any
	Expect(json.Unmarshal([]byte(graphJSON), &g)).To(Succeed())
	return &schema.Entity{
		ID:   id,
		Type: schema.KindProtocol,
		Data: map[string]any{"graph": g},
	}
}

var _ = Describe("VM", func() {
	var (
		ctx      context.Context
		registry *primitive.Registry
		machine  *vm.VM
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry = primitive.NewRegistry()

		registry.Register(primitive.Spec{
			ID:       "primitive-echo",
			Required: []string{"text"},
			Handler: func(_ context.Context, inputs map[string]any, _ *primitive.ExecContext) primitive.Response {
				return primitive.Ok(map[string]any{"text": inputs["text"]})
			},
		})
		registry.Register(primitive.Spec{
			ID: "primitive-explode",
			Handler: func(_ context.Context, _ map[string]any, _ *primitive.ExecContext) primitive.Response {
				return primitive.Fail(primitive.KindExecutionError, "deliberate failure")
			},
		})

		machine = &vm.VM{Registry: registry, Exec: &primitive.ExecContext{}}
	})

	It("runs a linear call protocol and extracts the return template", func() {
		p := protocolEntity("protocol-greet", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "say", "kind": "call", "primitive": "primitive-echo",
				 "inputs": {"text": "hello {$.inputs.name}"}},
				{"id": "done", "kind": "return", "outputs": {"greeting": "$.say.text"}}
			],
			"edges": [
				{"from": "start", "to": "say"},
				{"from": "say", "to": "done"}
			]
		}`)

		st := machine.Run(ctx, p, map[string]any{"name": "world"})
		Expect(st.Status).To(Equal(vm.StatusFulfilled))
		Expect(st.ExitNode).To(Equal("done"))
		Expect(st.Output["greeting"]).To(Equal("hello world"))
		Expect(st.Trace).To(Equal([]string{"start", "say", "done"}))
	})

	It("takes the default branch arm and records its exit node", func() {
		p := protocolEntity("protocol-sign", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "check", "kind": "branch"},
				{"id": "return-a", "kind": "return", "outputs": {"sign": "positive"}},
				{"id": "return-b", "kind": "return", "outputs": {"sign": "non-positive"}}
			],
			"edges": [
				{"from": "start", "to": "check"},
				{"from": "check", "to": "return-a", "condition": {"left": "$.inputs.x", "op": "gt", "value": 0}},
				{"from": "check", "to": "return-b", "default": true}
			]
		}`)

		st := machine.Run(ctx, p, map[string]any{"x": -1})
		Expect(st.Status).To(Equal(vm.StatusFulfilled))
		Expect(st.ExitNode).To(Equal("return-b"))
		Expect(st.Output["sign"]).To(Equal("non-positive"))

		st = machine.Run(ctx, p, map[string]any{"x": 5})
		Expect(st.ExitNode).To(Equal("return-a"))
	})

	It("fails with no_branch when no arm matches and no default exists", func() {
		p := protocolEntity("protocol-strict", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "check", "kind": "branch"},
				{"id": "done", "kind": "return"}
			],
			"edges": [
				{"from": "start", "to": "check"},
				{"from": "check", "to": "done", "condition": {"left": "$.inputs.x", "op": "eq", "value": 1}}
			]
		}`)

		st := machine.Run(ctx, p, map[string]any{"x": 2})
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrKind).To(Equal(primitive.KindExecutionError))
		Expect(st.ErrMessage).To(Equal("no_branch"))
	})

	It("applies set nodes to the bindings", func() {
		p := protocolEntity("protocol-set", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "prep", "kind": "set", "assign": {"doubled": "$.inputs.x"}},
				{"id": "done", "kind": "return", "outputs": {"value": "$.doubled"}}
			],
			"edges": [
				{"from": "start", "to": "prep"},
				{"from": "prep", "to": "done"}
			]
		}`)

		st := machine.Run(ctx, p, map[string]any{"x": 7.0})
		Expect(st.Status).To(Equal(vm.StatusFulfilled))
		Expect(st.Output["value"]).To(Equal(7.0))
	})

	It("propagates primitive error kinds as protocol failure", func() {
		p := protocolEntity("protocol-boom", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "bad", "kind": "call", "primitive": "primitive-explode"},
				{"id": "done", "kind": "return"}
			],
			"edges": [
				{"from": "start", "to": "bad"},
				{"from": "bad", "to": "done"}
			]
		}`)

		st := machine.Run(ctx, p, nil)
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrKind).To(Equal(primitive.KindExecutionError))
		Expect(st.ErrMessage).To(ContainSubstring("deliberate failure"))
	})

	It("fails cycle_detected when an edge is retraced", func() {
		p := protocolEntity("protocol-loop", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "a", "kind": "merge"},
				{"id": "b", "kind": "merge"},
				{"id": "done", "kind": "return"}
			],
			"edges": [
				{"from": "start", "to": "a"},
				{"from": "a", "to": "b"},
				{"from": "b", "to": "a"}
			]
		}`)

		st := machine.Run(ctx, p, nil)
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrMessage).To(Equal("cycle_detected"))
	})

	It("exhausts the step budget on unbounded graphs", func() {
		// Legal edges but a tiny budget: the run must stop on fuel, not hang.
		machine.MaxSteps = 2
		p := protocolEntity("protocol-long", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "a", "kind": "merge"},
				{"id": "b", "kind": "merge"},
				{"id": "done", "kind": "return"}
			],
			"edges": [
				{"from": "start", "to": "a"},
				{"from": "a", "to": "b"},
				{"from": "b", "to": "done"}
			]
		}`)

		st := machine.Run(ctx, p, nil)
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrMessage).To(Equal("step_budget_exhausted"))
	})

	It("fails with timeout when the context is done", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		p := protocolEntity("protocol-slow", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "done", "kind": "return"}
			],
			"edges": [{"from": "start", "to": "done"}]
		}`)

		st := machine.Run(cancelled, p, nil)
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrMessage).To(Equal("timeout"))
	})

	It("validates declared required inputs", func() {
		p := protocolEntity("protocol-needs", `{
			"nodes": [
				{"id": "start", "kind": "start"},
				{"id": "done", "kind": "return"}
			],
			"edges": [{"from": "start", "to": "done"}]
		}`)
		p.Data["inputs_schema"] = map[string]any{"required": []any{"target"}}

		st := machine.Run(ctx, p, map[string]any{})
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrKind).To(Equal(primitive.KindInvalidInputs))

		st = machine.Run(ctx, p, map[string]any{"target": "x"})
		Expect(st.Status).To(Equal(vm.StatusFulfilled))
	})

	It("rejects a malformed graph as execution_error", func() {
		p := &schema.Entity{ID: "protocol-bad", Type: schema.KindProtocol, Data: map[string]any{}}
		st := machine.Run(ctx, p, nil)
		Expect(st.Status).To(Equal(vm.StatusFailed))
		Expect(st.ErrKind).To(Equal(primitive.KindExecutionError))
	})
})
