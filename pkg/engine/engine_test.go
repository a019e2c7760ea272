package engine_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/engine"
	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/primitive/std"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
)

// echoGraph is a minimal protocol: start -> call echo -> return.
func echoGraph() map[string]any {
	return map[string]any{
		"nodes": []any{
			map[string]any{"id": "start", "kind": "start"},
			map[string]any{
				"id":        "run",
				"kind":      "call",
				"primitive": "primitive-echo",
				"inputs":    map[string]any{"value": "$.inputs.value"},
			},
			map[string]any{
				"id":      "done",
				"kind":    "return",
				"outputs": map[string]any{"echoed": "$.run.value"},
			},
		},
		"edges": []any{
			map[string]any{"from": "start", "to": "run"},
			map[string]any{"from": "run", "to": "done"},
		},
	}
}

var _ = Describe("Engine", func() {
	var (
		ctx context.Context
		s   *store.Store
		reg *primitive.Registry
		eng *engine.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		s, err = store.New(store.Config{Path: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { s.Close() })

		reg = primitive.NewRegistry()
		std.RegisterAll(reg)

		eng = engine.New(engine.Config{Store: s, Registry: reg})
	})

	Describe("ResolveIntent", func() {
		It("routes every spelling of an intent to the same primitive", func() {
			for _, intent := range []string{
				"manifest_entity",
				"manifest-entity",
				"primitive-manifest-entity",
			} {
				id, kind, found := eng.ResolveIntent(ctx, intent)
				Expect(found).To(BeTrue(), intent)
				Expect(id).To(Equal("primitive-manifest-entity"), intent)
				Expect(kind).To(Equal(engine.KindPrimitive), intent)
			}
		})

		It("prefers a protocol over a primitive on a tie", func() {
			Expect(s.SaveGeneric(ctx, "protocol-echo", schema.KindProtocol, map[string]any{
				"title": "echo", "graph": echoGraph(),
			})).To(Succeed())

			id, kind, found := eng.ResolveIntent(ctx, "echo")
			Expect(found).To(BeTrue())
			Expect(id).To(Equal("protocol-echo"))
			Expect(kind).To(Equal(engine.KindProtocol))
		})

		It("reports unknown intents", func() {
			_, _, found := eng.ResolveIntent(ctx, "transmute-lead")
			Expect(found).To(BeFalse())
		})
	})

	Describe("Dispatch", func() {
		It("runs a primitive and returns its data", func() {
			res := eng.Dispatch(ctx, "manifest_entity", map[string]any{
				"entity_type": "learning",
				"title":       "dispatch works",
			}, nil)

			Expect(res.OK).To(BeTrue())
			Expect(res.Data["entity_id"]).To(Equal("learning-dispatch-works"))

			_, err := s.GetEntity(ctx, "learning-dispatch-works")
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails with intent_not_found for an unknown intent", func() {
			res := eng.Dispatch(ctx, "no-such-thing", nil, nil)
			Expect(res.OK).To(BeFalse())
			Expect(res.ErrorKind).To(Equal(primitive.KindIntentNotFound))
		})

		It("surfaces the primitive's error kind unchanged", func() {
			res := eng.Dispatch(ctx, "get-entity", map[string]any{"id": "learning-ghost"}, nil)
			Expect(res.OK).To(BeFalse())
			Expect(res.ErrorKind).To(Equal(primitive.KindNotFound))
		})

		It("runs a protocol through the interpreter and extracts outputs", func() {
			Expect(s.SaveGeneric(ctx, "protocol-greet", schema.KindProtocol, map[string]any{
				"title": "greet", "graph": echoGraph(),
			})).To(Succeed())

			res := eng.Dispatch(ctx, "greet", map[string]any{"value": "hello"}, nil)
			Expect(res.OK).To(BeTrue())
			Expect(res.ExitNode).To(Equal("done"))
			Expect(res.Data["echoed"]).To(Equal("hello"))
		})

		It("fails a protocol whose graph is malformed", func() {
			Expect(s.SaveGeneric(ctx, "protocol-broken", schema.KindProtocol, map[string]any{
				"title": "broken", "graph": map[string]any{"nodes": []any{}, "edges": []any{}},
			})).To(Succeed())

			res := eng.Dispatch(ctx, "broken", nil, nil)
			Expect(res.OK).To(BeFalse())
			Expect(res.ErrorKind).To(Equal(primitive.KindExecutionError))
		})
	})

	Describe("protocol invocation through the registry", func() {
		It("lets primitives execute protocols without the engine", func() {
			Expect(s.SaveGeneric(ctx, "protocol-ping", schema.KindProtocol, map[string]any{
				"title": "ping", "graph": echoGraph(),
			})).To(Succeed())

			resp := reg.InvokeProtocol(ctx, "protocol-ping", map[string]any{"value": "pong"})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["echoed"]).To(Equal("pong"))
			Expect(resp.Data["exit_node"]).To(Equal("done"))
		})

		It("maps a missing protocol to protocol_not_found", func() {
			resp := reg.InvokeProtocol(ctx, "protocol-missing", nil)
			Expect(resp.ErrorKind).To(Equal(primitive.KindProtocolNotFound))
		})
	})

	Describe("Capabilities", func() {
		It("lists protocols before primitives with their interfaces", func() {
			Expect(s.SaveGeneric(ctx, "protocol-survey", schema.KindProtocol, map[string]any{
				"title":       "survey",
				"description": "walks the graph",
				"graph":       echoGraph(),
				"inputs_schema": map[string]any{
					"required": []any{"scope"},
					"optional": []any{"depth"},
				},
			})).To(Succeed())

			caps, err := eng.Capabilities(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(caps[0].ID).To(Equal("protocol-survey"))
			Expect(caps[0].Kind).To(Equal(engine.KindProtocol))
			Expect(caps[0].Interface.Required).To(Equal([]string{"scope"}))

			ids := map[string]bool{}
			for _, c := range caps {
				ids[c.ID] = true
			}
			Expect(ids["primitive-manage-bond"]).To(BeTrue())
			Expect(ids["primitive-pulse-check-signals"]).To(BeTrue())
		})

		It("sorts protocols by id regardless of creation order", func() {
			for _, id := range []string{"protocol-zenith", "protocol-atlas", "protocol-mosaic"} {
				Expect(s.SaveGeneric(ctx, id, schema.KindProtocol, map[string]any{
					"title": id,
					"graph": echoGraph(),
				})).To(Succeed())
			}

			caps, err := eng.Capabilities(ctx)
			Expect(err).NotTo(HaveOccurred())

			protocols := []string{}
			for _, c := range caps {
				if c.Kind == engine.KindProtocol {
					protocols = append(protocols, c.ID)
				}
			}
			Expect(protocols).To(Equal([]string{"protocol-atlas", "protocol-mosaic", "protocol-zenith"}))
		})
	})
})
