package std_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/primitive/std"
	"github.com/papercomputeco/chora/pkg/pulse/worker"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
)

var _ = Describe("Standard primitives", func() {
	var (
		ctx context.Context
		s   *store.Store
		reg *primitive.Registry
		ec  *primitive.ExecContext
	)

	call := func(id string, inputs map[string]any) primitive.Response {
		return reg.Call(ctx, id, inputs, ec)
	}

	activeSignals := func() []*schema.Entity {
		signals, err := s.QueryEntities(ctx, store.EntityFilter{
			Type:   schema.KindSignal,
			Status: schema.StatusActive,
		})
		Expect(err).NotTo(HaveOccurred())
		return signals
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		s, err = store.New(store.Config{Path: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { s.Close() })

		reg = primitive.NewRegistry()
		std.RegisterAll(reg)

		ec = &primitive.ExecContext{Store: s, Registry: reg, PersonaID: "persona-test"}
	})

	Describe("manifest-entity", func() {
		It("derives the id from the title and reports creation", func() {
			resp := call("primitive-manifest-entity", map[string]any{
				"entity_type": "learning",
				"title":       "Roots follow water",
				"data":        map[string]any{"insight": "growth tracks moisture"},
			})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["entity_id"]).To(Equal("learning-roots-follow-water"))
			Expect(resp.Data["created"]).To(BeTrue())

			again := call("primitive-manifest-entity", map[string]any{
				"entity_type": "learning",
				"entity_id":   "learning-roots-follow-water",
				"data":        map[string]any{"insight": "revised"},
			})
			Expect(again.Data["created"]).To(BeFalse())
		})

		It("rejects a call with neither id nor title", func() {
			resp := call("primitive-manifest-entity", map[string]any{"entity_type": "learning"})
			Expect(resp.ErrorKind).To(Equal(primitive.KindInvalidInputs))
		})
	})

	Describe("get-entity and update-entity-data", func() {
		It("reports not_found for a missing id", func() {
			resp := call("primitive-get-entity", map[string]any{"id": "learning-ghost"})
			Expect(resp.ErrorKind).To(Equal(primitive.KindNotFound))
		})

		It("merges a patch into the payload", func() {
			Expect(s.SaveGeneric(ctx, "inquiry-why", "inquiry",
				map[string]any{"title": "why", "question": "why?"})).To(Succeed())

			resp := call("primitive-update-entity-data", map[string]any{
				"id":   "inquiry-why",
				"data": map[string]any{"status": "resolved"},
			})
			Expect(resp.IsError()).To(BeFalse())

			e, err := s.GetEntity(ctx, "inquiry-why")
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Data["question"]).To(Equal("why?"))
			Expect(e.Status()).To(Equal("resolved"))
		})
	})

	Describe("manage-bond", func() {
		BeforeEach(func() {
			Expect(s.SaveGeneric(ctx, "learning-osmosis", "learning",
				map[string]any{"title": "osmosis"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "principle-gradients", "principle",
				map[string]any{"title": "gradients"})).To(Succeed())
		})

		It("stores a tentative bond and emits an epistemic signal", func() {
			resp := call("primitive-manage-bond", map[string]any{
				"verb":       "surfaces",
				"from":       "learning-osmosis",
				"to":         "principle-gradients",
				"confidence": 0.7,
			})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["tentative"]).To(BeTrue())

			bondID := resp.Data["id"].(string)
			b, err := s.GetBond(ctx, bondID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Confidence).To(Equal(0.7))

			signalID := resp.Data["signal_id"].(string)
			sig, err := s.GetEntity(ctx, signalID)
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Title()).To(HavePrefix("Tentative bond created"))
			Expect(sig.Data["source_id"]).To(Equal(bondID))
			Expect(sig.Data["urgency"]).To(Equal("normal"))
		})

		It("emits no signal for a fully asserted bond", func() {
			resp := call("primitive-manage-bond", map[string]any{
				"verb": "surfaces",
				"from": "learning-osmosis",
				"to":   "principle-gradients",
			})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data).NotTo(HaveKey("signal_id"))
		})

		It("rejects a physics-violating triple and writes nothing", func() {
			Expect(s.SaveGeneric(ctx, "story-x", "story", map[string]any{"title": "x"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "tool-y", "tool", map[string]any{"title": "y"})).To(Succeed())

			resp := call("primitive-manage-bond", map[string]any{
				"verb": "verifies",
				"from": "story-x",
				"to":   "tool-y",
			})
			Expect(resp.ErrorKind).To(Equal(primitive.KindPhysicsViolation))

			bonds, err := s.QueryBonds(ctx, store.BondFilter{Verb: "verifies"})
			Expect(err).NotTo(HaveOccurred())
			Expect(bonds).To(BeEmpty())
		})

		It("reports not_found for a missing endpoint", func() {
			resp := call("primitive-manage-bond", map[string]any{
				"verb": "surfaces",
				"from": "learning-osmosis",
				"to":   "principle-ghost",
			})
			Expect(resp.ErrorKind).To(Equal(primitive.KindNotFound))
		})
	})

	Describe("update-bond-confidence", func() {
		var bondID string

		BeforeEach(func() {
			Expect(s.SaveGeneric(ctx, "learning-a", "learning", map[string]any{"title": "a"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "principle-b", "principle", map[string]any{"title": "b"})).To(Succeed())

			resp := call("primitive-manage-bond", map[string]any{
				"verb": "surfaces", "from": "learning-a", "to": "principle-b",
			})
			Expect(resp.IsError()).To(BeFalse())
			bondID = resp.Data["id"].(string)
		})

		It("escalates urgency for a large drop", func() {
			resp := call("primitive-update-bond-confidence", map[string]any{
				"id": bondID, "confidence": 0.4,
			})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["previous"]).To(Equal(1.0))
			Expect(resp.Data["new"]).To(Equal(0.4))

			sig, err := s.GetEntity(ctx, resp.Data["signal_id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Data["urgency"]).To(Equal("high"))
		})

		It("keeps normal urgency for a small drop", func() {
			resp := call("primitive-update-bond-confidence", map[string]any{
				"id": bondID, "confidence": 0.8,
			})
			sig, err := s.GetEntity(ctx, resp.Data["signal_id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Data["urgency"]).To(Equal("normal"))
		})

		It("emits nothing when confidence rises", func() {
			lower := call("primitive-update-bond-confidence", map[string]any{
				"id": bondID, "confidence": 0.5,
			})
			Expect(lower.IsError()).To(BeFalse())
			before := len(activeSignals())

			raise := call("primitive-update-bond-confidence", map[string]any{
				"id": bondID, "confidence": 0.9,
			})
			Expect(raise.IsError()).To(BeFalse())
			Expect(raise.Data).NotTo(HaveKey("signal_id"))
			Expect(activeSignals()).To(HaveLen(before))
		})
	})

	Describe("compost", func() {
		BeforeEach(func() {
			Expect(s.SaveGeneric(ctx, "inquiry-stale", "inquiry",
				map[string]any{"title": "stale", "question": "?"})).To(Succeed())
		})

		It("archives the entity and manifests a decomposition learning", func() {
			resp := call("primitive-compost", map[string]any{"id": "inquiry-stale"})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["archived"]).To(BeTrue())

			_, err := s.GetEntity(ctx, "inquiry-stale")
			Expect(err).To(HaveOccurred())

			learning, err := s.GetEntity(ctx, resp.Data["learning_id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(learning.Data["composted_id"]).To(Equal("inquiry-stale"))

			rec, err := s.GetArchived(ctx, resp.Data["archive_id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.LearningID).To(Equal(resp.Data["learning_id"]))
		})

		It("refuses when active bonds exist without force", func() {
			Expect(s.SaveGeneric(ctx, "learning-from-it", "learning",
				map[string]any{"title": "from it"})).To(Succeed())
			Expect(s.SaveBond(ctx, &schema.Bond{
				Type: "yields", FromID: "inquiry-stale", ToID: "learning-from-it", Confidence: 1,
			})).To(Succeed())

			resp := call("primitive-compost", map[string]any{"id": "inquiry-stale"})
			Expect(resp.ErrorKind).To(Equal(primitive.KindExecutionError))

			forced := call("primitive-compost", map[string]any{"id": "inquiry-stale", "force": true})
			Expect(forced.IsError()).To(BeFalse())
		})
	})

	Describe("resurrect", func() {
		It("restores an archived entity", func() {
			Expect(s.SaveGeneric(ctx, "tool-saw", "tool", map[string]any{"title": "saw"})).To(Succeed())
			archiveID, err := s.ArchiveEntity(ctx, "tool-saw", store.ArchiveOptions{})
			Expect(err).NotTo(HaveOccurred())

			resp := call("primitive-resurrect", map[string]any{"archive_id": archiveID})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["entity_id"]).To(Equal("tool-saw"))

			_, err = s.GetEntity(ctx, "tool-saw")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("focus lifecycle", func() {
		It("opens, resolves once, and refuses a second resolution", func() {
			created := call("primitive-create-focus", map[string]any{
				"title":       "Ship the harvester",
				"description": "finish the ingest path",
			})
			Expect(created.IsError()).To(BeFalse())
			focusID := created.Data["id"].(string)

			focus, err := s.GetEntity(ctx, focusID)
			Expect(err).NotTo(HaveOccurred())
			Expect(focus.Data["persona_id"]).To(Equal("persona-test"))

			resolved := call("primitive-resolve-focus", map[string]any{
				"id":       focusID,
				"outcome":  "completed",
				"learning": "small batches land faster",
			})
			Expect(resolved.IsError()).To(BeFalse())

			learning, err := s.GetEntity(ctx, resolved.Data["learning_id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(learning.Data["insight"]).To(Equal("small batches land faster"))

			again := call("primitive-resolve-focus", map[string]any{
				"id": focusID, "outcome": "abandoned",
			})
			Expect(again.ErrorKind).To(Equal(primitive.KindAlreadyResolved))
		})

		It("rejects an unknown outcome", func() {
			resp := call("primitive-resolve-focus", map[string]any{
				"id": "focus-whatever", "outcome": "paused",
			})
			Expect(resp.ErrorKind).To(Equal(primitive.KindInvalidInputs))
		})
	})

	Describe("detect-stagnation", func() {
		It("emits a stagnation signal for an inquiry past its TTL", func() {
			staleAt := time.Now().UTC().AddDate(0, 0, -31).Format(time.RFC3339)
			Expect(s.SaveGeneric(ctx, "inquiry-forgotten", "inquiry", map[string]any{
				"title":      "forgotten",
				"question":   "what happened?",
				"status":     "active",
				"created_at": staleAt,
			})).To(Succeed())

			resp := call("primitive-detect-stagnation", nil)
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["count"]).To(Equal(1))

			var tracking *schema.Entity
			for _, sig := range activeSignals() {
				if sig.Data["tracks_entity_id"] == "inquiry-forgotten" {
					tracking = sig
				}
			}
			Expect(tracking).NotTo(BeNil())
			Expect(tracking.Data["category"]).To(Equal("stagnation"))
			Expect(tracking.Data["signal_type"]).To(Equal("stagnation-detected"))
		})

		It("skips entities inside their TTL and terminal statuses", func() {
			Expect(s.SaveGeneric(ctx, "inquiry-fresh", "inquiry", map[string]any{
				"title": "fresh", "status": "active",
				"created_at": time.Now().UTC().Format(time.RFC3339),
			})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "inquiry-done", "inquiry", map[string]any{
				"title": "done", "status": "resolved",
				"created_at": time.Now().UTC().AddDate(0, 0, -90).Format(time.RFC3339),
			})).To(Succeed())

			resp := call("primitive-detect-stagnation", nil)
			Expect(resp.Data["count"]).To(Equal(0))
		})

		It("honors a metabolic-threshold principle override", func() {
			Expect(s.SaveGeneric(ctx, "principle-learning-stagnates-after-1-days", "principle",
				map[string]any{
					"title":       "learnings stagnate after a day",
					"category":    "metabolic-threshold",
					"entity_type": "learning",
					"ttl_days":    float64(1),
				})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "learning-idle", "learning", map[string]any{
				"title":      "idle",
				"created_at": time.Now().UTC().AddDate(0, 0, -2).Format(time.RFC3339),
			})).To(Succeed())

			resp := call("primitive-detect-stagnation", nil)
			Expect(resp.IsError()).To(BeFalse())

			found := false
			for _, sig := range activeSignals() {
				if sig.Data["tracks_entity_id"] == "learning-idle" {
					found = true
				}
			}
			Expect(found).To(BeTrue())
		})
	})

	Describe("check-void-resolution", func() {
		It("auto-resolves a stagnation signal once the entity moves again", func() {
			Expect(s.SaveGeneric(ctx, "inquiry-woke", "inquiry",
				map[string]any{"title": "woke", "status": "active"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "signal-stagnant-inquiry-abc", "signal", map[string]any{
				"title":            "Stagnation detected: inquiry-woke",
				"status":           "active",
				"signal_type":      "stagnation-detected",
				"tracks_entity_id": "inquiry-woke",
				"ttl_days":         float64(30),
			})).To(Succeed())

			resp := call("primitive-check-void-resolution", nil)
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["resolved_signals"]).To(ContainElement("signal-stagnant-inquiry-abc"))

			sig, err := s.GetEntity(ctx, "signal-stagnant-inquiry-abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Status()).To(Equal(schema.StatusResolved))
			Expect(sig.Data["resolution"]).To(Equal("auto-resolved: void cleared"))
		})

		It("resolves an orphan signal once the entity gains a bond", func() {
			Expect(s.SaveGeneric(ctx, "learning-lonely", "learning",
				map[string]any{"title": "lonely"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "principle-home", "principle",
				map[string]any{"title": "home"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "signal-orphan-1", "signal", map[string]any{
				"title":            "Orphan detected: learning-lonely",
				"status":           "active",
				"signal_type":      "orphan-detected",
				"tracks_entity_id": "learning-lonely",
			})).To(Succeed())

			untouched := call("primitive-check-void-resolution", nil)
			Expect(untouched.Data["count"]).To(Equal(0))

			Expect(s.SaveBond(ctx, &schema.Bond{
				Type: "surfaces", FromID: "learning-lonely", ToID: "principle-home", Confidence: 1,
			})).To(Succeed())

			resp := call("primitive-check-void-resolution", nil)
			Expect(resp.Data["resolved_signals"]).To(ContainElement("signal-orphan-1"))
		})
	})

	Describe("pulse primitives", func() {
		BeforeEach(func() {
			Expect(s.SaveGeneric(ctx, "protocol-ping", "protocol", map[string]any{
				"title": "ping", "description": "returns pong",
			})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "signal-knock", "signal", map[string]any{
				"title": "knock", "status": "active", "signal_type": "attention",
			})).To(Succeed())
			Expect(s.SaveBond(ctx, &schema.Bond{
				Type: "triggers", FromID: "signal-knock", ToID: "protocol-ping", Confidence: 1,
			})).To(Succeed())
		})

		It("previews candidates without writing", func() {
			resp := call("primitive-pulse-preview", nil)
			Expect(resp.IsError()).To(BeFalse())

			would := resp.Data["would_process"].([]any)
			Expect(would).To(HaveLen(1))
			entry := would[0].(map[string]any)
			Expect(entry["signal_id"]).To(Equal("signal-knock"))
			Expect(entry["triggers"]).To(Equal("protocol-ping"))

			sig, err := s.GetEntity(ctx, "signal-knock")
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Status()).To(Equal(schema.StatusActive))
		})

		It("resolves a signal whose protocol succeeds and records the outcome", func() {
			var gotInputs map[string]any
			reg.SetProtocolInvoker(func(_ context.Context, protocolID string, inputs map[string]any) primitive.Response {
				gotInputs = inputs
				Expect(protocolID).To(Equal("protocol-ping"))
				return primitive.Ok(map[string]any{"pong": true})
			})

			resp := call("primitive-pulse-check-signals", nil)
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["signals_processed"]).To(Equal(1))
			Expect(resp.Data["protocols_triggered"]).To(ContainElement("protocol-ping"))
			Expect(gotInputs["signal_id"]).To(Equal("signal-knock"))

			sig, err := s.GetEntity(ctx, "signal-knock")
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Status()).To(Equal(schema.StatusResolved))

			outcomes, err := s.SignalOutcomes(ctx, "signal-knock")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcomes).To(HaveLen(1))
			Expect(outcomes[0].ProtocolID).To(Equal("protocol-ping"))
			Expect(outcomes[0].DurationMs).To(BeNumerically(">=", 0))
		})

		It("fails the signal and records the error when the protocol errors", func() {
			reg.SetProtocolInvoker(func(_ context.Context, _ string, _ map[string]any) primitive.Response {
				return primitive.Fail(primitive.KindExecutionError, "boom")
			})

			resp := call("primitive-pulse-check-signals", nil)
			Expect(resp.IsError()).To(BeFalse())

			sig, err := s.GetEntity(ctx, "signal-knock")
			Expect(err).NotTo(HaveOccurred())
			Expect(sig.Status()).To(Equal(schema.StatusFailed))

			outcomes, err := s.SignalOutcomes(ctx, "signal-knock")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcomes[0].Error["kind"]).To(Equal("execution_error"))
		})

		It("skips signals without triggers", func() {
			Expect(s.SaveGeneric(ctx, "signal-quiet", "signal", map[string]any{
				"title": "quiet", "status": "active",
			})).To(Succeed())
			reg.SetProtocolInvoker(func(_ context.Context, _ string, _ map[string]any) primitive.Response {
				return primitive.Ok(nil)
			})

			resp := call("primitive-pulse-check-signals", nil)
			Expect(resp.Data["signals_found"]).To(Equal(2))
			Expect(resp.Data["signals_processed"]).To(Equal(1))

			quiet, err := s.GetEntity(ctx, "signal-quiet")
			Expect(err).NotTo(HaveOccurred())
			Expect(quiet.Status()).To(Equal(schema.StatusActive))
		})
	})

	Describe("io and sys", func() {
		It("echoes its value", func() {
			resp := call("primitive-echo", map[string]any{"value": "hello"})
			Expect(resp.Data["value"]).To(Equal("hello"))
		})

		It("searches indexed entities", func() {
			Expect(s.SaveGeneric(ctx, "learning-tides", "learning",
				map[string]any{"title": "tides", "insight": "the moon pulls the sea"})).To(Succeed())

			idx := call("primitive-fts-index-entity", map[string]any{"id": "learning-tides"})
			Expect(idx.IsError()).To(BeFalse())

			resp := call("primitive-fts-search", map[string]any{"query": "moon"})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["count"]).To(Equal(1))
		})

		It("summarizes the graph", func() {
			Expect(s.SaveGeneric(ctx, "learning-one", "learning", map[string]any{"title": "one"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "tool-two", "tool", map[string]any{"title": "two"})).To(Succeed())

			resp := call("primitive-get-status", nil)
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["entity_count"]).To(Equal(2))
			byType := resp.Data["entities_by_type"].(map[string]any)
			Expect(byType["learning"]).To(Equal(1))
		})
	})

	Describe("logic", func() {
		It("gets a nested value by dot-notation path", func() {
			resp := call("primitive-json-get", map[string]any{
				"data": map[string]any{"user": map[string]any{"profile": map[string]any{"name": "ada"}}},
				"path": "user.profile.name",
			})
			Expect(resp.Data["value"]).To(Equal("ada"))
			Expect(resp.Data["found"]).To(BeTrue())
		})

		It("indexes into lists and falls back to the default", func() {
			resp := call("primitive-json-get", map[string]any{
				"data": map[string]any{"items": []any{map[string]any{"name": "first"}}},
				"path": "items.0.name",
			})
			Expect(resp.Data["value"]).To(Equal("first"))

			missing := call("primitive-json-get", map[string]any{
				"data":    map[string]any{},
				"path":    "items.9.name",
				"default": "n/a",
			})
			Expect(missing.Data["value"]).To(Equal("n/a"))
			Expect(missing.Data["found"]).To(BeFalse())
		})

		It("sets a nested value without mutating the input", func() {
			data := map[string]any{"user": map[string]any{}}
			resp := call("primitive-json-set", map[string]any{
				"data": data, "path": "user.profile.name", "value": "lin",
			})
			Expect(resp.IsError()).To(BeFalse())

			out := resp.Data["data"].(map[string]any)
			Expect(out["user"].(map[string]any)["profile"].(map[string]any)["name"]).To(Equal("lin"))
			Expect(data["user"]).To(BeEmpty())
		})

		It("refuses to set through a non-object value", func() {
			resp := call("primitive-json-set", map[string]any{
				"data": map[string]any{"user": "flat"}, "path": "user.name", "value": "x",
			})
			Expect(resp.ErrorKind).To(Equal(primitive.KindInvalidInputs))
		})

		It("parses a JSON string", func() {
			resp := call("primitive-json-parse", map[string]any{"json_str": `{"n": 3}`})
			Expect(resp.Data["data"].(map[string]any)["n"]).To(Equal(3.0))

			bad := call("primitive-json-parse", map[string]any{"json_str": "{"})
			Expect(bad.ErrorKind).To(Equal(primitive.KindInvalidInputs))
		})

		It("maps a field across a list", func() {
			resp := call("primitive-list-map", map[string]any{
				"items": []any{
					map[string]any{"meta": map[string]any{"tag": "a"}},
					map[string]any{"meta": map[string]any{"tag": "b"}},
					map[string]any{},
				},
				"key": "meta.tag",
			})
			Expect(resp.Data["values"]).To(Equal([]any{"a", "b", nil}))
			Expect(resp.Data["count"]).To(Equal(3))
		})

		It("filters by predicate and rejects unknown operators", func() {
			items := []any{
				map[string]any{"score": 0.9, "kind": "learning"},
				map[string]any{"score": 0.3, "kind": "tool"},
				map[string]any{"kind": "story"},
			}

			resp := call("primitive-list-filter", map[string]any{
				"items": items, "key": "score", "op": "gte", "value": 0.5,
			})
			Expect(resp.Data["count"]).To(Equal(1))

			exists := call("primitive-list-filter", map[string]any{
				"items": items, "key": "score", "op": "exists",
			})
			Expect(exists.Data["count"]).To(Equal(2))

			bad := call("primitive-list-filter", map[string]any{
				"items": items, "key": "score", "op": "resembles",
			})
			Expect(bad.ErrorKind).To(Equal(primitive.KindInvalidInputs))
		})

		It("sorts by field with missing values last", func() {
			resp := call("primitive-list-sort", map[string]any{
				"items": []any{
					map[string]any{"rank": 3.0, "id": "c"},
					map[string]any{"id": "blank"},
					map[string]any{"rank": 1.0, "id": "a"},
				},
				"key": "rank",
			})
			sorted := resp.Data["items"].([]any)
			Expect(sorted[0].(map[string]any)["id"]).To(Equal("a"))
			Expect(sorted[1].(map[string]any)["id"]).To(Equal("c"))
			Expect(sorted[2].(map[string]any)["id"]).To(Equal("blank"))
		})

		It("measures, slices, and summarizes lists", func() {
			items := []any{"a", "b", "a", "c", "a"}

			length := call("primitive-list-length", map[string]any{"items": items})
			Expect(length.Data["length"]).To(Equal(5))

			mode := call("primitive-list-mode", map[string]any{"items": items})
			Expect(mode.Data["value"]).To(Equal("a"))
			Expect(mode.Data["count"]).To(Equal(3))

			empty := call("primitive-list-mode", map[string]any{"items": []any{}})
			Expect(empty.Data["found"]).To(BeFalse())

			sliced := call("primitive-list-slice", map[string]any{
				"items": items, "start": 1, "end": 3,
			})
			Expect(sliced.Data["items"]).To(Equal([]any{"b", "a"}))

			tail := call("primitive-list-slice", map[string]any{
				"items": items, "start": -2,
			})
			Expect(tail.Data["items"]).To(Equal([]any{"c", "a"}))
		})

		It("formats templates and joins lists", func() {
			resp := call("primitive-string-format", map[string]any{
				"template": "{kind} {count} found",
				"values":   map[string]any{"kind": "signals", "count": 4},
			})
			Expect(resp.Data["result"]).To(Equal("signals 4 found"))

			missing := call("primitive-string-format", map[string]any{
				"template": "{kind} in {place}",
				"values":   map[string]any{"kind": "signals"},
			})
			Expect(missing.ErrorKind).To(Equal(primitive.KindInvalidInputs))

			joined := call("primitive-string-join", map[string]any{
				"items": []any{"a", 2, "c"}, "separator": ", ",
			})
			Expect(joined.Data["result"]).To(Equal("a, 2, c"))
		})
	})

	Describe("async tasks", func() {
		It("reports dependency_unavailable without a worker pool", func() {
			resp := call("primitive-run-async", map[string]any{"protocol_id": "protocol-ping"})
			Expect(resp.ErrorKind).To(Equal(primitive.KindDependencyUnavailable))
		})

		It("enqueues through the pool and exposes the recorded outcome", func() {
			reg.SetProtocolInvoker(func(_ context.Context, protocolID string, inputs map[string]any) primitive.Response {
				return primitive.Ok(map[string]any{"ran": protocolID, "got": inputs["x"]})
			})
			pool := worker.New(worker.Config{Store: s, Registry: reg, NumWorkers: 1})
			ec.Tasks = pool

			resp := call("primitive-run-async", map[string]any{
				"protocol_id": "protocol-ping",
				"inputs":      map[string]any{"x": "y"},
			})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["status"]).To(Equal(store.TaskPending))
			taskID := resp.Data["task_id"].(string)

			pool.Close()

			done := call("primitive-get-task", map[string]any{"task_id": taskID})
			Expect(done.IsError()).To(BeFalse())
			Expect(done.Data["status"]).To(Equal(store.TaskCompleted))
			Expect(done.Data["result"].(map[string]any)["ran"]).To(Equal("protocol-ping"))
		})

		It("reports not_found for an unknown task", func() {
			resp := call("primitive-get-task", map[string]any{"task_id": "task-ghost"})
			Expect(resp.ErrorKind).To(Equal(primitive.KindNotFound))
		})
	})

	Describe("cognition without an embedder", func() {
		It("searches with a fallback method", func() {
			Expect(s.SaveGeneric(ctx, "learning-rain", "learning",
				map[string]any{"title": "rain", "insight": "clouds condense into rain"})).To(Succeed())
			Expect(s.IndexEntityFTS(ctx, "learning-rain")).To(Succeed())

			resp := call("primitive-semantic-search", map[string]any{"query": "rain"})
			Expect(resp.IsError()).To(BeFalse())
			Expect(resp.Data["method"]).To(BeElementOf("fts5", "keyword"))
		})

		It("reports fallback similarity for entities without vectors", func() {
			Expect(s.SaveGeneric(ctx, "learning-x", "learning", map[string]any{"title": "x"})).To(Succeed())
			Expect(s.SaveGeneric(ctx, "learning-y", "learning", map[string]any{"title": "y"})).To(Succeed())

			resp := call("primitive-semantic-similarity", map[string]any{
				"a": "learning-x", "b": "learning-y",
			})
			Expect(resp.Data["score"]).To(Equal(0.0))
			Expect(resp.Data["method"]).To(Equal("fallback"))
		})
	})

	It("rejects missing required inputs before the handler runs", func() {
		resp := call("primitive-manage-bond", map[string]any{"verb": "surfaces"})
		Expect(resp.ErrorKind).To(Equal(primitive.KindInvalidInputs))
		Expect(strings.Contains(resp.ErrorMessage, "from")).To(BeTrue())
	})
})
