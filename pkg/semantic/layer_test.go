package semantic_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/semantic"
	"github.com/papercomputeco/chora/pkg/store"
)

// wordEmbedder maps known words onto fixed orthogonal-ish vectors so tests
// get deterministic similarity without a model.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	t := strings.ToLower(text)
	if strings.Contains(t, "water") {
		vec[0] = 1
	}
	if strings.Contains(t, "membrane") {
		vec[1] = 1
	}
	if strings.Contains(t, "fire") {
		vec[2] = 1
	}
	if strings.Contains(t, "energy") {
		vec[3] = 1
	}
	return vec, nil
}

func (wordEmbedder) Close() error { return nil }

var _ = Describe("Layer", func() {
	var (
		ctx context.Context
		s   *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		s, err = store.New(store.Config{Path: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { s.Close() })

		Expect(s.SaveGeneric(ctx, "learning-osmosis", schema.KindLearning,
			map[string]any{"title": "osmosis", "insight": "water crosses the membrane"})).To(Succeed())
		Expect(s.SaveGeneric(ctx, "learning-diffusion", schema.KindLearning,
			map[string]any{"title": "diffusion", "insight": "water spreads through the membrane"})).To(Succeed())
		Expect(s.SaveGeneric(ctx, "learning-combustion", schema.KindLearning,
			map[string]any{"title": "combustion", "insight": "fire releases energy"})).To(Succeed())
	})

	Describe("without an embedder", func() {
		var layer *semantic.Layer

		BeforeEach(func() {
			layer = &semantic.Layer{Store: s}
		})

		It("EmbedEntity reports fallback and stores nothing", func() {
			dim, method, err := layer.EmbedEntity(ctx, "learning-osmosis")
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(semantic.MethodFallback))
			Expect(dim).To(Equal(0))

			_, err = s.GetEmbedding(ctx, "learning-osmosis")
			Expect(err).To(HaveOccurred())
		})

		It("Similarity of the same entity is 1.0", func() {
			score, method := layer.Similarity(ctx, "learning-osmosis", "learning-osmosis")
			Expect(score).To(Equal(1.0))
			Expect(method).To(Equal(semantic.MethodSemantic))
		})

		It("Similarity with missing vectors is a 0.0 fallback", func() {
			score, method := layer.Similarity(ctx, "learning-osmosis", "learning-diffusion")
			Expect(score).To(Equal(0.0))
			Expect(method).To(Equal(semantic.MethodFallback))
		})

		It("Search falls back to text search and reports the method", func() {
			for _, id := range []string{"learning-osmosis", "learning-diffusion", "learning-combustion"} {
				Expect(s.IndexEntityFTS(ctx, id)).To(Succeed())
			}

			results, method, err := layer.Search(ctx, "water", "", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(BeElementOf(semantic.MethodFTS, semantic.MethodKeyword))

			ids := []string{}
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(ContainElements("learning-osmosis", "learning-diffusion"))
			Expect(ids).NotTo(ContainElement("learning-combustion"))
		})

		It("SuggestBonds uses the type heuristic and honors physics", func() {
			Expect(s.SaveGeneric(ctx, "principle-gradients", schema.KindPrinciple,
				map[string]any{"statement": "flows follow gradients"})).To(Succeed())

			suggestions, method, err := layer.SuggestBonds(ctx, "learning-osmosis", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(semantic.MethodTypeBased))

			for _, sg := range suggestions {
				to, err := s.GetEntity(ctx, sg.ToID)
				Expect(err).NotTo(HaveOccurred())
				Expect(schema.AllowedBond(sg.Verb, schema.KindLearning, to.Type)).To(BeTrue())
			}

			verbs := []string{}
			for _, sg := range suggestions {
				if sg.ToID == "principle-gradients" {
					verbs = append(verbs, sg.Verb)
				}
			}
			Expect(verbs).To(ContainElement("surfaces"))
		})

		It("DetectClusters groups by keyword overlap", func() {
			clusters, method, err := layer.DetectClusters(ctx, schema.KindLearning, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(semantic.MethodKeyword))

			var waterCluster *semantic.Cluster
			for i := range clusters {
				for _, m := range clusters[i].Members {
					if m == "learning-osmosis" {
						waterCluster = &clusters[i]
					}
				}
			}
			Expect(waterCluster).NotTo(BeNil())
			Expect(waterCluster.Members).To(ContainElement("learning-diffusion"))
			Expect(waterCluster.Members).NotTo(ContainElement("learning-combustion"))
		})
	})

	Describe("with an embedder", func() {
		var layer *semantic.Layer

		BeforeEach(func() {
			layer = &semantic.Layer{Store: s, Embedder: wordEmbedder{}, ModelName: "word-test"}

			for _, id := range []string{"learning-osmosis", "learning-diffusion", "learning-combustion"} {
				dim, method, err := layer.EmbedEntity(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(method).To(Equal(semantic.MethodSemantic))
				Expect(dim).To(Equal(4))
			}
		})

		It("persists vectors under the configured model", func() {
			emb, err := s.GetEmbedding(ctx, "learning-osmosis")
			Expect(err).NotTo(HaveOccurred())
			Expect(emb.ModelName).To(Equal("word-test"))
		})

		It("scores related entities above unrelated ones", func() {
			related, method := layer.Similarity(ctx, "learning-osmosis", "learning-diffusion")
			Expect(method).To(Equal(semantic.MethodSemantic))

			unrelated, _ := layer.Similarity(ctx, "learning-osmosis", "learning-combustion")
			Expect(related).To(BeNumerically(">", unrelated))
		})

		It("ranks search results by cosine", func() {
			results, method, err := layer.Search(ctx, "water in the membrane", schema.KindLearning, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(semantic.MethodSemantic))
			Expect(results[0].ID).To(BeElementOf("learning-osmosis", "learning-diffusion"))
			Expect(results[len(results)-1].ID).To(Equal("learning-combustion"))
		})

		It("clusters by vector similarity", func() {
			clusters, method, err := layer.DetectClusters(ctx, schema.KindLearning, 0.75)
			Expect(err).NotTo(HaveOccurred())
			Expect(method).To(Equal(semantic.MethodSemantic))
			Expect(len(clusters)).To(Equal(2))
		})
	})
})
