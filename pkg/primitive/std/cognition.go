package std

import (
	"context"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/semantic"
)

func cognitionSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-embed-entity",
			Description: "Vectorize and store an entity's embedding",
			Required:    []string{"id"},
			Handler:     embedEntity,
		},
		{
			ID:          "primitive-embed-text",
			Description: "Vectorize free text without persisting",
			Required:    []string{"text"},
			Handler:     embedText,
		},
		{
			ID:          "primitive-semantic-similarity",
			Description: "Cosine similarity of two entities' stored vectors",
			Required:    []string{"a", "b"},
			Handler:     semanticSimilarity,
		},
		{
			ID:          "primitive-semantic-search",
			Description: "Rank entities against a query, degrading to full-text search",
			Required:    []string{"query"},
			Optional:    []string{"type", "limit"},
			Handler:     semanticSearch,
		},
		{
			ID:          "primitive-suggest-bonds",
			Description: "Propose physics-legal bonds ranked by similarity",
			Required:    []string{"id"},
			Optional:    []string{"limit"},
			Handler:     suggestBonds,
		},
		{
			ID:          "primitive-detect-clusters",
			Description: "Group entities of one type by embedding or keyword overlap",
			Required:    []string{"type"},
			Optional:    []string{"threshold"},
			Handler:     detectClusters,
		},
	}
}

func layerFrom(ec *primitive.ExecContext) *semantic.Layer {
	return &semantic.Layer{
		Store:     ec.Store,
		Embedder:  ec.Embedder,
		ModelName: ec.ModelName,
		Logger:    ec.Logger,
	}
}

func embedEntity(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")

	dim, method, err := layerFrom(ec).EmbedEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}

	out := map[string]any{"entity_id": id, "method": method}
	if dim > 0 {
		out["dim"] = dim
	}
	return primitive.Ok(out)
}

func embedText(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	text, _ := primitive.StringInput(inputs, "text")

	vec, method := layerFrom(ec).EmbedText(ctx, text)

	out := map[string]any{"method": method}
	if len(vec) > 0 {
		out["dim"] = len(vec)
		out["vector"] = vec
	}
	return primitive.Ok(out)
}

func semanticSimilarity(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	a, _ := primitive.StringInput(inputs, "a")
	b, _ := primitive.StringInput(inputs, "b")

	score, method := layerFrom(ec).Similarity(ctx, a, b)
	return primitive.Ok(map[string]any{"score": score, "method": method})
}

func semanticSearch(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	query, _ := primitive.StringInput(inputs, "query")
	entityType, _ := primitive.StringInput(inputs, "type")
	limit := intInput(inputs, "limit", 10)

	results, method, err := layerFrom(ec).Search(ctx, query, entityType, limit)
	if err != nil {
		return failStore(err)
	}

	rows := make([]any, 0, len(results))
	for _, r := range results {
		rows = append(rows, map[string]any{
			"id":    r.ID,
			"type":  r.Type,
			"title": r.Title,
			"score": r.Score,
		})
	}
	return primitive.Ok(map[string]any{"results": rows, "method": method, "count": len(rows)})
}

func suggestBonds(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")
	limit := intInput(inputs, "limit", 5)

	suggestions, method, err := layerFrom(ec).SuggestBonds(ctx, id, limit)
	if err != nil {
		return failStore(err)
	}

	rows := make([]any, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, map[string]any{
			"verb":  s.Verb,
			"from":  s.FromID,
			"to":    s.ToID,
			"score": s.Score,
		})
	}
	return primitive.Ok(map[string]any{"suggestions": rows, "method": method, "count": len(rows)})
}

func detectClusters(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	entityType, _ := primitive.StringInput(inputs, "type")
	threshold, _ := primitive.FloatInput(inputs, "threshold")

	clusters, method, err := layerFrom(ec).DetectClusters(ctx, entityType, threshold)
	if err != nil {
		return failStore(err)
	}

	rows := make([]any, 0, len(clusters))
	for _, c := range clusters {
		rows = append(rows, map[string]any{"members": c.Members, "size": len(c.Members)})
	}
	return primitive.Ok(map[string]any{"clusters": rows, "method": method, "count": len(rows)})
}
