// Package semantic layers embedding-backed operations over the store.
//
// Every operation degrades deterministically when no embedder is
// configured or the provider fails: results carry a method field so
// callers can distinguish semantic ranking from its fallbacks. The
// dependency being unavailable is never an error.
package semantic

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/embeddings"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
)

// Methods reported by semantic operations.
const (
	MethodSemantic  = "semantic"
	MethodFallback  = "fallback"
	MethodFTS       = "fts5"
	MethodTypeBased = "type-based"
	MethodKeyword   = "keyword"
)

// Layer binds the store to an optional vectorizer.
type Layer struct {
	Store *store.Store
	// Embedder may be nil; all operations then use their fallback path.
	Embedder  embeddings.Embedder
	ModelName string
	Logger    *zap.Logger
}

func (l *Layer) log() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Layer) model() string {
	if l.ModelName == "" {
		return "unknown"
	}
	return l.ModelName
}

// EmbedEntity computes and stores the vector for an entity. Returns the
// stored dimension and the method used.
func (l *Layer) EmbedEntity(ctx context.Context, id string) (dim int, method string, err error) {
	e, err := l.Store.GetEntity(ctx, id)
	if err != nil {
		return 0, MethodFallback, err
	}

	if l.Embedder == nil {
		return 0, MethodFallback, nil
	}

	vec, err := l.Embedder.Embed(ctx, EntityText(e))
	if err != nil {
		l.log().Warn("embedding unavailable", zap.String("entity_id", id), zap.Error(err))
		return 0, MethodFallback, nil
	}

	if err := l.Store.SaveEmbedding(ctx, id, l.model(), vec); err != nil {
		return 0, MethodFallback, err
	}

	return len(vec), MethodSemantic, nil
}

// EmbedText vectorizes free text without persisting anything.
func (l *Layer) EmbedText(ctx context.Context, text string) (vec []float32, method string) {
	if l.Embedder == nil {
		return nil, MethodFallback
	}

	v, err := l.Embedder.Embed(ctx, text)
	if err != nil {
		l.log().Warn("embedding unavailable", zap.Error(err))
		return nil, MethodFallback
	}
	return v, MethodSemantic
}

// Similarity scores two entities by cosine of their stored vectors.
// The same entity scores 1.0; a missing vector scores 0.0 with method
// fallback.
func (l *Layer) Similarity(ctx context.Context, a, b string) (score float64, method string) {
	if a == b {
		return 1.0, MethodSemantic
	}

	ea, errA := l.Store.GetEmbedding(ctx, a)
	eb, errB := l.Store.GetEmbedding(ctx, b)
	if errA != nil || errB != nil {
		return 0.0, MethodFallback
	}

	return Cosine(ea.Vector, eb.Vector), MethodSemantic
}

// SearchResult is one ranked search hit.
type SearchResult struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Search ranks entities against a query. With a working embedder the query
// is vectorized and ranked by cosine over stored vectors; otherwise the
// store's full-text (or keyword) search answers.
func (l *Layer) Search(ctx context.Context, query, entityType string, limit int) ([]SearchResult, string, error) {
	if limit <= 0 {
		limit = 10
	}

	qvec, method := l.EmbedText(ctx, query)
	if method != MethodSemantic {
		return l.textSearch(ctx, query, entityType, limit)
	}

	stored, err := l.Store.AllEmbeddings(ctx, entityType)
	if err != nil {
		return nil, MethodFallback, err
	}
	if len(stored) == 0 {
		return l.textSearch(ctx, query, entityType, limit)
	}

	results := make([]SearchResult, 0, len(stored))
	for _, emb := range stored {
		e, err := l.Store.GetEntity(ctx, emb.EntityID)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{
			ID:    e.ID,
			Type:  e.Type,
			Title: e.Title(),
			Score: Cosine(qvec, emb.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, MethodSemantic, nil
}

func (l *Layer) textSearch(ctx context.Context, query, entityType string, limit int) ([]SearchResult, string, error) {
	hits, err := l.Store.SearchFTS(ctx, query, entityType, limit)
	if err != nil {
		return nil, MethodFallback, err
	}

	method := MethodFTS
	if !l.Store.FTSAvailable() {
		method = MethodKeyword
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{ID: h.ID, Type: h.Type, Title: h.Title})
	}
	return results, method, nil
}

// BondSuggestion is one physics-legal candidate bond.
type BondSuggestion struct {
	Verb   string  `json:"verb"`
	FromID string  `json:"from_id"`
	ToID   string  `json:"to_id"`
	Score  float64 `json:"score"`
}

// SuggestBonds proposes bonds from the given entity to others, constrained
// to physics-legal triples. Candidates are ranked by stored-vector cosine
// when available, else by a type-compatibility heuristic.
func (l *Layer) SuggestBonds(ctx context.Context, id string, limit int) ([]BondSuggestion, string, error) {
	if limit <= 0 {
		limit = 5
	}

	from, err := l.Store.GetEntity(ctx, id)
	if err != nil {
		return nil, MethodFallback, err
	}

	candidates, err := l.Store.QueryEntities(ctx, store.EntityFilter{})
	if err != nil {
		return nil, MethodFallback, err
	}

	fromEmb, embErr := l.Store.GetEmbedding(ctx, id)
	semantic := embErr == nil

	method := MethodTypeBased
	if semantic {
		method = MethodSemantic
	}

	existing, err := l.Store.QueryBonds(ctx, store.BondFilter{EitherID: id})
	if err != nil {
		return nil, MethodFallback, err
	}
	bonded := map[string]bool{}
	for _, b := range existing {
		bonded[b.FromID] = true
		bonded[b.ToID] = true
	}

	out := []BondSuggestion{}
	for _, cand := range candidates {
		if cand.ID == id || cand.Type == schema.KindRelationship || bonded[cand.ID] {
			continue
		}

		for _, verb := range schema.AllowedVerbs(from.Type, cand.Type) {
			if verb == "crystallized-from" || verb == "inhabits" {
				// Universal verbs would suggest everything.
				continue
			}

			score := 0.5
			if semantic {
				if candEmb, err := l.Store.GetEmbedding(ctx, cand.ID); err == nil {
					score = Cosine(fromEmb.Vector, candEmb.Vector)
				} else {
					score = 0
				}
			}

			out = append(out, BondSuggestion{Verb: verb, FromID: id, ToID: cand.ID, Score: score})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, method, nil
}

// Cluster is one grouping of related entities.
type Cluster struct {
	Members []string `json:"members"`
	Label   string   `json:"label,omitempty"`
}

// DetectClusters groups entities of one type: greedy threshold clustering
// over stored vectors, else keyword overlap grouping.
func (l *Layer) DetectClusters(ctx context.Context, entityType string, threshold float64) ([]Cluster, string, error) {
	if threshold <= 0 {
		threshold = 0.75
	}

	embs, err := l.Store.AllEmbeddings(ctx, entityType)
	if err != nil {
		return nil, MethodFallback, err
	}

	if len(embs) >= 2 {
		return vectorClusters(embs, threshold), MethodSemantic, nil
	}

	entities, err := l.Store.QueryEntities(ctx, store.EntityFilter{Type: entityType})
	if err != nil {
		return nil, MethodFallback, err
	}
	return keywordClusters(entities), MethodKeyword, nil
}

// vectorClusters assigns each vector to the first cluster whose seed is
// within the threshold, seeding a new cluster otherwise.
func vectorClusters(embs []*store.Embedding, threshold float64) []Cluster {
	type seed struct {
		vec     []float32
		members []string
	}
	seeds := []*seed{}

	for _, e := range embs {
		placed := false
		for _, s := range seeds {
			if Cosine(s.vec, e.Vector) >= threshold {
				s.members = append(s.members, e.EntityID)
				placed = true
				break
			}
		}
		if !placed {
			seeds = append(seeds, &seed{vec: e.Vector, members: []string{e.EntityID}})
		}
	}

	out := make([]Cluster, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, Cluster{Members: s.members})
	}
	return out
}

// keywordClusters groups entities whose extracted text shares enough words
// (Jaccard similarity of word sets at or above 0.3).
func keywordClusters(entities []*schema.Entity) []Cluster {
	words := func(e *schema.Entity) map[string]bool {
		set := map[string]bool{}
		for _, w := range strings.Fields(strings.ToLower(EntityText(e))) {
			if len(w) > 3 {
				set[w] = true
			}
		}
		return set
	}

	jaccard := func(a, b map[string]bool) float64 {
		if len(a) == 0 || len(b) == 0 {
			return 0
		}
		inter := 0
		for w := range a {
			if b[w] {
				inter++
			}
		}
		union := len(a) + len(b) - inter
		return float64(inter) / float64(union)
	}

	sets := make([]map[string]bool, len(entities))
	for i, e := range entities {
		sets[i] = words(e)
	}

	assigned := make([]bool, len(entities))
	out := []Cluster{}
	for i := range entities {
		if assigned[i] {
			continue
		}
		cluster := Cluster{Members: []string{entities[i].ID}}
		assigned[i] = true

		for j := i + 1; j < len(entities); j++ {
			if assigned[j] {
				continue
			}
			if jaccard(sets[i], sets[j]) >= 0.3 {
				cluster.Members = append(cluster.Members, entities[j].ID)
				assigned[j] = true
			}
		}
		out = append(out, cluster)
	}
	return out
}
